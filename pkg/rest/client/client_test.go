package client

import (
	"context"
	"testing"
)

func TestClientHealth(t *testing.T) {
	var want, got string

	c, err := New(baseURLStr)
	if err != nil {
		t.Fatal(err)
	}
	mth := &mockHTTPClient{body: `{"status": "ok", "version": "2.1.0"}`}
	c.client = mth

	// Method under test
	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want = "GET"
	got = mth.req.Method
	if got != want {
		t.Errorf("req.Method == %q, want %q", got, want)
	}

	want = baseURLStr + "/api/health"
	got = mth.req.URL.String()
	if got != want {
		t.Errorf("req.URL == %q, want %q", got, want)
	}

	want = "ok"
	got = health.Status
	if got != want {
		t.Errorf("Status == %q, want %q", got, want)
	}

	want = "2.1.0"
	got = health.Version
	if got != want {
		t.Errorf("Version == %q, want %q", got, want)
	}
}

func TestClientListMailbox(t *testing.T) {
	var want, got string
	response := `{
		"mailbox": "testbox",
		"email": "testbox@example.com",
		"count": 2,
		"messages": [
			{
				"id": "0002",
				"mailbox": "testbox",
				"from": "sender@example.com",
				"subject": "subject2",
				"date": "2024-03-10T11:12:13Z",
				"received_at": "2024-03-10T11:12:14Z",
				"size": 120,
				"has_html": true,
				"preview": "second preview"
			},
			{
				"id": "0001",
				"mailbox": "testbox",
				"from": "sender@example.com",
				"subject": "subject1",
				"date": "2024-03-09T10:00:00Z",
				"received_at": "2024-03-09T10:00:01Z",
				"size": 100,
				"has_html": false,
				"preview": "first preview"
			}
		]
	}`

	c, err := New(baseURLStr)
	if err != nil {
		t.Fatal(err)
	}
	mth := &mockHTTPClient{body: response}
	c.client = mth

	// Method under test
	summaries, err := c.ListMailbox(context.Background(), "testbox")
	if err != nil {
		t.Fatal(err)
	}

	want = "GET"
	got = mth.req.Method
	if got != want {
		t.Errorf("req.Method == %q, want %q", got, want)
	}

	want = baseURLStr + "/api/mailboxes/testbox/messages"
	got = mth.req.URL.String()
	if got != want {
		t.Errorf("req.URL == %q, want %q", got, want)
	}

	if len(summaries) != 2 {
		t.Fatalf("len(summaries) == %v, want 2", len(summaries))
	}
	summary := summaries[0]

	want = "0002"
	got = summary.ID
	if got != want {
		t.Errorf("ID == %q, want %q", got, want)
	}

	want = "testbox"
	got = summary.Mailbox
	if got != want {
		t.Errorf("Mailbox == %q, want %q", got, want)
	}

	want = "subject2"
	got = summary.Subject
	if got != want {
		t.Errorf("Subject == %q, want %q", got, want)
	}

	want = "second preview"
	got = summary.Preview
	if got != want {
		t.Errorf("Preview == %q, want %q", got, want)
	}

	wantb := true
	gotb := summary.HasHTML
	if gotb != wantb {
		t.Errorf("HasHTML == %v, want %v", gotb, wantb)
	}

	// Test MessageSummary.Delete()
	mth.body = ""
	mth.statusCode = 204
	err = summary.Delete(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want = "DELETE"
	got = mth.req.Method
	if got != want {
		t.Errorf("req.Method == %q, want %q", got, want)
	}

	want = baseURLStr + "/api/mailboxes/testbox/messages/0002"
	got = mth.req.URL.String()
	if got != want {
		t.Errorf("req.URL == %q, want %q", got, want)
	}
}

func TestClientListAddress(t *testing.T) {
	var want, got string

	c, err := New(baseURLStr)
	if err != nil {
		t.Fatal(err)
	}
	mth := &mockHTTPClient{body: `{"mailbox": "testbox", "email": "testbox@example.com", "count": 0, "messages": []}`}
	c.client = mth

	// Method under test
	summaries, err := c.ListAddress(context.Background(), "testbox@example.com")
	if err != nil {
		t.Fatal(err)
	}

	want = "GET"
	got = mth.req.Method
	if got != want {
		t.Errorf("req.Method == %q, want %q", got, want)
	}

	want = baseURLStr + "/api/messages?email=testbox%40example.com"
	got = mth.req.URL.String()
	if got != want {
		t.Errorf("req.URL == %q, want %q", got, want)
	}

	if len(summaries) != 0 {
		t.Errorf("len(summaries) == %v, want 0", len(summaries))
	}
}

func TestClientGetMessage(t *testing.T) {
	var want, got string
	response := `{
		"mailbox": "testbox",
		"email": "testbox@example.com",
		"message": {
			"id": "0001",
			"mailbox": "testbox",
			"from": "sender@example.com",
			"subject": "subject1",
			"date": "2024-03-09T10:00:00Z",
			"received_at": "2024-03-09T10:00:01Z",
			"size": 100,
			"has_html": true,
			"preview": "text body",
			"to": ["testbox@example.com"],
			"text": "text body",
			"html": "<p>html body</p>",
			"parse_errors": []
		}
	}`

	c, err := New(baseURLStr)
	if err != nil {
		t.Fatal(err)
	}
	mth := &mockHTTPClient{body: response}
	c.client = mth

	// Method under test
	message, err := c.GetMessage(context.Background(), "testbox", "0001")
	if err != nil {
		t.Fatal(err)
	}

	want = "GET"
	got = mth.req.Method
	if got != want {
		t.Errorf("req.Method == %q, want %q", got, want)
	}

	want = baseURLStr + "/api/mailboxes/testbox/messages/0001"
	got = mth.req.URL.String()
	if got != want {
		t.Errorf("req.URL == %q, want %q", got, want)
	}

	want = "0001"
	got = message.ID
	if got != want {
		t.Errorf("ID == %q, want %q", got, want)
	}

	want = "text body"
	got = message.Text
	if got != want {
		t.Errorf("Text == %q, want %q", got, want)
	}

	want = "<p>html body</p>"
	got = message.HTML
	if got != want {
		t.Errorf("HTML == %q, want %q", got, want)
	}

	if len(message.To) != 1 || message.To[0] != "testbox@example.com" {
		t.Errorf("To == %q, want [testbox@example.com]", message.To)
	}
}

func TestClientGetMessageSource(t *testing.T) {
	var want, got string

	c, err := New(baseURLStr)
	if err != nil {
		t.Fatal(err)
	}
	mth := &mockHTTPClient{
		body: "message source",
	}
	c.client = mth

	// Method under test
	source, err := c.GetMessageSource(context.Background(), "testbox", "0001")
	if err != nil {
		t.Fatal(err)
	}

	want = "GET"
	got = mth.req.Method
	if got != want {
		t.Errorf("req.Method == %q, want %q", got, want)
	}

	want = baseURLStr + "/api/mailboxes/testbox/messages/0001/source"
	got = mth.req.URL.String()
	if got != want {
		t.Errorf("req.URL == %q, want %q", got, want)
	}

	want = "message source"
	got = source.String()
	if got != want {
		t.Errorf("Source == %q, want: %q", got, want)
	}
}

func TestClientDeleteMessage(t *testing.T) {
	var want, got string

	c, err := New(baseURLStr)
	if err != nil {
		t.Fatal(err)
	}
	mth := &mockHTTPClient{statusCode: 204}
	c.client = mth

	// Method under test
	err = c.DeleteMessage(context.Background(), "testbox", "0001")
	if err != nil {
		t.Fatal(err)
	}

	want = "DELETE"
	got = mth.req.Method
	if got != want {
		t.Errorf("req.Method == %q, want %q", got, want)
	}

	want = baseURLStr + "/api/mailboxes/testbox/messages/0001"
	got = mth.req.URL.String()
	if got != want {
		t.Errorf("req.URL == %q, want %q", got, want)
	}
}

func TestClientPurgeMailbox(t *testing.T) {
	var want, got string

	c, err := New(baseURLStr)
	if err != nil {
		t.Fatal(err)
	}
	mth := &mockHTTPClient{statusCode: 204}
	c.client = mth

	// Method under test
	err = c.PurgeMailbox(context.Background(), "testbox")
	if err != nil {
		t.Fatal(err)
	}

	want = "DELETE"
	got = mth.req.Method
	if got != want {
		t.Errorf("req.Method == %q, want %q", got, want)
	}

	want = baseURLStr + "/api/mailboxes/testbox/messages"
	got = mth.req.URL.String()
	if got != want {
		t.Errorf("req.URL == %q, want %q", got, want)
	}
}

func TestClientNextMessage(t *testing.T) {
	var want, got string
	response := `{
		"id": "0003",
		"mailbox": "testbox",
		"from": "sender@example.com",
		"subject": "just arrived",
		"date": "2024-03-10T11:12:13Z",
		"received_at": "2024-03-10T11:12:14Z",
		"size": 64,
		"has_html": false,
		"preview": "hello"
	}`

	c, err := New(baseURLStr)
	if err != nil {
		t.Fatal(err)
	}
	mth := &mockHTTPClient{body: response}
	c.client = mth

	// Method under test
	summary, err := c.NextMessage(context.Background(), "testbox")
	if err != nil {
		t.Fatal(err)
	}

	want = baseURLStr + "/api/mailboxes/testbox/events/next"
	got = mth.req.URL.String()
	if got != want {
		t.Errorf("req.URL == %q, want %q", got, want)
	}

	if summary == nil {
		t.Fatal("summary == nil, want message summary")
	}

	want = "0003"
	got = summary.ID
	if got != want {
		t.Errorf("ID == %q, want %q", got, want)
	}

	want = "just arrived"
	got = summary.Subject
	if got != want {
		t.Errorf("Subject == %q, want %q", got, want)
	}
}

func TestClientNextMessageEmpty(t *testing.T) {
	c, err := New(baseURLStr)
	if err != nil {
		t.Fatal(err)
	}
	mth := &mockHTTPClient{statusCode: 204}
	c.client = mth

	// Method under test
	summary, err := c.NextMessage(context.Background(), "testbox")
	if err != nil {
		t.Fatal(err)
	}
	if summary != nil {
		t.Errorf("summary == %v, want nil for an empty long-poll window", summary)
	}
}
