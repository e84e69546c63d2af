package extension_test

import (
	"testing"

	"github.com/driftmail/driftmail/pkg/extension"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerEmitNoListeners(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	event := "bacon"
	assert.Nil(t, broker.Emit(&event))
}

func TestBrokerEmitCallsListenersInOrder(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	var order []string
	makeListener := func(name string) func(string) *bool {
		return func(s string) *bool {
			order = append(order, name+":"+s)
			return nil
		}
	}
	broker.AddListener("1", makeListener("first"))
	broker.AddListener("2", makeListener("second"))

	event := "hi"
	broker.Emit(&event)
	assert.Equal(t, []string{"first:hi", "second:hi"}, order)
}

func TestBrokerEmitCapturesFirstResult(t *testing.T) {
	broker := &extension.EventBroker[struct{}, string]{}

	makeListener := func(result *string) func(struct{}) *string {
		return func(struct{}) *string { return result }
	}
	first := "first"
	second := "second"
	broker.AddListener("0", makeListener(nil))
	broker.AddListener("1", makeListener(&first))
	broker.AddListener("2", makeListener(&second))

	got := broker.Emit(&struct{}{})
	require.NotNil(t, got)
	assert.Equal(t, first, *got)
}

func TestBrokerAddingDuplicateNameReplacesPrevious(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	var firstGot, secondGot string
	broker.AddListener("dup", func(s string) *bool {
		firstGot = s
		return nil
	})
	broker.AddListener("dup", func(s string) *bool {
		secondGot = s
		return nil
	})

	event := "hi"
	broker.Emit(&event)
	assert.Empty(t, firstGot, "replaced listener must not be called")
	assert.Equal(t, event, secondGot)
}

func TestBrokerRemovingListenerSuccessful(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	var firstGot, secondGot string
	broker.AddListener("1", func(s string) *bool {
		firstGot = s
		return nil
	})
	broker.AddListener("2", func(s string) *bool {
		secondGot = s
		return nil
	})
	broker.RemoveListener("1")

	event := "hi"
	broker.Emit(&event)
	assert.Empty(t, firstGot, "removed listener must not be called")
	assert.Equal(t, event, secondGot)
}

func TestBrokerRemovingMissingListener(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}
	broker.RemoveListener("doesn't crash")
}
