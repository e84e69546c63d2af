package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"time"

	"github.com/driftmail/driftmail/pkg/rest/client"
	"github.com/google/subcommands"
)

type matchCmd struct {
	output  string
	outFunc func(ctx context.Context, summaries []*client.MessageSummary) error
	delete  bool
	// match criteria
	from    regexFlag
	subject regexFlag
	to      regexFlag
	maxAge  time.Duration
}

func (*matchCmd) Name() string {
	return "match"
}

func (*matchCmd) Synopsis() string {
	return "output messages matching criteria"
}

func (*matchCmd) Usage() string {
	return `match [flags] <mailbox>:
	output messages matching all specified criteria
	exit status will be 1 if no matches were found, otherwise 0
`
}

func (m *matchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.output, "output", "id", "output format: id, json, or mbox")
	f.BoolVar(&m.delete, "delete", false, "delete matched messages after output")
	f.Var(&m.from, "from", "From header matching regexp (address, not name)")
	f.Var(&m.subject, "subject", "Subject header matching regexp")
	f.Var(&m.to, "to", "To header matching regexp (must match 1+ to address)")
	f.DurationVar(
		&m.maxAge, "maxage", 0,
		"Matches must have been received in this time frame (ex: \"10s\", \"5m\")")
}

func (m *matchCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	mailbox := f.Arg(0)
	if mailbox == "" {
		return usage("mailbox required")
	}
	// Select output function
	switch m.output {
	case "id":
		m.outFunc = outputID
	case "json":
		m.outFunc = outputJSON
	case "mbox":
		m.outFunc = outputMbox
	default:
		return usage("unknown output type: " + m.output)
	}
	// Setup REST client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	// Get list
	summaries, err := c.ListMailbox(ctx, mailbox)
	if err != nil {
		return fatal("List REST call failed", err)
	}
	// Find matches
	matches := make([]*client.MessageSummary, 0, len(summaries))
	for _, s := range summaries {
		ok, err := m.match(ctx, s)
		if err != nil {
			return fatal("Match failed", err)
		}
		if ok {
			matches = append(matches, s)
		}
	}
	// Return error status if no matches
	if len(matches) == 0 {
		return subcommands.ExitFailure
	}
	// Output matches
	err = m.outFunc(ctx, matches)
	if err != nil {
		return fatal("Error", err)
	}
	if m.delete {
		// Delete matches
		for _, s := range matches {
			err = s.Delete(ctx)
			if err != nil {
				return fatal("Delete REST call failed", err)
			}
		}
	}
	return subcommands.ExitSuccess
}

// match returns true if the summary matches all defined criteria. Recipient
// matching fetches the full message, since summaries do not carry them.
func (m *matchCmd) match(ctx context.Context, s *client.MessageSummary) (bool, error) {
	if m.maxAge > 0 {
		if time.Since(s.Date) > m.maxAge {
			return false, nil
		}
	}
	if m.subject.Defined() {
		if !m.subject.MatchString(s.Subject) {
			return false, nil
		}
	}
	if m.from.Defined() {
		from := s.From
		addr, err := mail.ParseAddress(from)
		if err == nil {
			// Parsed successfully
			from = addr.Address
		}
		if !m.from.MatchString(from) {
			return false, nil
		}
	}
	if m.to.Defined() {
		message, err := s.GetMessage(ctx)
		if err != nil {
			return false, err
		}
		match := false
		for _, to := range message.To {
			addr, err := mail.ParseAddress(to)
			if err == nil {
				// Parsed successfully
				to = addr.Address
			}
			if m.to.MatchString(to) {
				match = true
				break
			}
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

func outputID(_ context.Context, summaries []*client.MessageSummary) error {
	for _, s := range summaries {
		fmt.Println(s.ID)
	}
	return nil
}

func outputJSON(_ context.Context, summaries []*client.MessageSummary) error {
	jsonEncoder := json.NewEncoder(os.Stdout)
	jsonEncoder.SetEscapeHTML(false)
	jsonEncoder.SetIndent("", "  ")
	return jsonEncoder.Encode(summaries)
}
