package web

import (
	"net/http"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/message"
	"github.com/driftmail/driftmail/pkg/msghub"
	"github.com/driftmail/driftmail/pkg/policy"
	"github.com/gorilla/mux"
)

// Context is passed into every request handler function.
type Context struct {
	Vars       map[string]string
	MsgHub     *msghub.Hub
	Manager    message.Manager
	AddrPolicy *policy.Addressing
	RootConfig *config.Root
}

// Close the Context once the request completes.
func (c *Context) Close() {}

// NewContext returns a Context for the given HTTP request.
func NewContext(req *http.Request) (*Context, error) {
	return &Context{
		Vars:       mux.Vars(req),
		MsgHub:     msgHub,
		Manager:    manager,
		AddrPolicy: addrPolicy,
		RootConfig: rootConfig,
	}, nil
}
