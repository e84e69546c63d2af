// Package rest implements the JSON query API over the message store.
package rest

import (
	"github.com/driftmail/driftmail/pkg/server/web"
	"github.com/gorilla/mux"
)

// SetupRoutes populates the routes for the REST interface.
func SetupRoutes(r *mux.Router) {
	r.Path("/health").Handler(
		web.Handler(GetHealth)).Name("GetHealth").Methods("GET")
	r.Path("/messages").Handler(
		web.Handler(ListMessagesByEmail)).Name("ListMessagesByEmail").Methods("GET")
	r.Path("/messages/{id}").Handler(
		web.Handler(GetMessageByEmail)).Name("GetMessageByEmail").Methods("GET")
	r.Path("/mailboxes/{name}/messages").Handler(
		web.Handler(ListMailboxMessages)).Name("ListMailboxMessages").Methods("GET")
	r.Path("/mailboxes/{name}/messages").Handler(
		web.Handler(PurgeMailboxMessages)).Name("PurgeMailboxMessages").Methods("DELETE")
	r.Path("/mailboxes/{name}/messages/{id}").Handler(
		web.Handler(GetMailboxMessage)).Name("GetMailboxMessage").Methods("GET")
	r.Path("/mailboxes/{name}/messages/{id}").Handler(
		web.Handler(DeleteMailboxMessage)).Name("DeleteMailboxMessage").Methods("DELETE")
	r.Path("/mailboxes/{name}/messages/{id}/source").Handler(
		web.Handler(GetMessageSource)).Name("GetMessageSource").Methods("GET")
	r.Path("/mailboxes/{name}/messages/{id}/html").Handler(
		web.Handler(GetMessageHTML)).Name("GetMessageHTML").Methods("GET")
	r.Path("/mailboxes/{name}/events/next").Handler(
		web.Handler(NextMailboxMessage)).Name("NextMailboxMessage").Methods("GET")
	r.Path("/monitor/messages").Handler(
		web.Handler(MonitorAllMessages)).Name("MonitorAllMessages").Methods("GET")
	r.Path("/monitor/mailboxes/{name}").Handler(
		web.Handler(MonitorMailboxMessages)).Name("MonitorMailboxMessages").Methods("GET")
}
