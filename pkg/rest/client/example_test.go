package client_test

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"

	"github.com/driftmail/driftmail/pkg/rest/client"
	"github.com/gorilla/mux"
)

// Example demonstrates basic usage for the DriftMail REST client.
func Example() {
	// Setup a fake DriftMail server for this example.
	baseURL, teardown := exampleSetup()
	defer teardown()

	err := func() error {
		ctx := context.Background()

		// Begin by creating a new client using the base URL of your DriftMail
		// server, i.e. `localhost:3000`.
		restClient, err := client.New(baseURL)
		if err != nil {
			return err
		}

		// Get a slice of message summaries for the mailbox named `user1`,
		// newest message first.
		summaries, err := restClient.ListMailbox(ctx, "user1")
		if err != nil {
			return err
		}
		for _, summary := range summaries {
			fmt.Printf("ID: %v, Subject: %v\n", summary.ID, summary.Subject)
		}

		// Get the content of the newest message.
		message, err := summaries[0].GetMessage(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nFrom: %v\n", message.From)
		fmt.Printf("Text body:\n%v", message.Text)

		// Delete the older message.
		err = summaries[1].Delete(ctx)
		if err != nil {
			return err
		}

		return nil
	}()

	if err != nil {
		log.Print(err)
	}

	// Output:
	// ID: 01J9ZX2B9V4N4CM1TW3AZ0F75D, Subject: Second subject
	// ID: 01J9ZWZZH83H0ESRZMJ3M21NFT, Subject: First subject
	//
	// From: admin@driftmail.test
	// Text body:
	// This is the plain text body
}

// exampleSetup creates a fake DriftMail server to power Example() above.
func exampleSetup() (baseURL string, teardown func()) {
	router := mux.NewRouter()
	server := httptest.NewServer(router)

	// Handle ListMailbox request.
	router.HandleFunc("/api/mailboxes/user1/messages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"mailbox": "user1",
			"email": "user1@driftmail.test",
			"count": 2,
			"messages": [
				{
					"id": "01J9ZX2B9V4N4CM1TW3AZ0F75D",
					"mailbox": "user1",
					"subject": "Second subject"
				},
				{
					"id": "01J9ZWZZH83H0ESRZMJ3M21NFT",
					"mailbox": "user1",
					"subject": "First subject"
				}
			]
		}`))
	})

	// Handle GetMessage request.
	router.HandleFunc("/api/mailboxes/user1/messages/01J9ZX2B9V4N4CM1TW3AZ0F75D",
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{
				"mailbox": "user1",
				"email": "user1@driftmail.test",
				"message": {
					"id": "01J9ZX2B9V4N4CM1TW3AZ0F75D",
					"mailbox": "user1",
					"from": "admin@driftmail.test",
					"subject": "Second subject",
					"text": "This is the plain text body"
				}
			}`))
		})

	// Handle Delete request.
	router.HandleFunc("/api/mailboxes/user1/messages/01J9ZWZZH83H0ESRZMJ3M21NFT",
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

	return server.URL, func() {
		server.Close()
	}
}
