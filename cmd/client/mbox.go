package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/driftmail/driftmail/pkg/rest/client"
	"github.com/google/subcommands"
)

type mboxCmd struct {
	delete bool
}

func (*mboxCmd) Name() string {
	return "mbox"
}

func (*mboxCmd) Synopsis() string {
	return "output mailbox in mbox format"
}

func (*mboxCmd) Usage() string {
	return `mbox [flags] <mailbox>:
	output mailbox in mbox format
`
}

func (m *mboxCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&m.delete, "delete", false, "delete messages after output")
}

func (m *mboxCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	mailbox := f.Arg(0)
	if mailbox == "" {
		return usage("mailbox required")
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
	err = outputMbox(ctx, summaries)
	if err != nil {
		return fatal("Error", err)
	}

	// Optionally, delete retrieved messages
	if m.delete {
		for _, s := range summaries {
			err = s.Delete(ctx)
			if err != nil {
				return fatal("Delete REST call failed", err)
			}
		}
	}

	return subcommands.ExitSuccess
}

// outputMbox renders messages in mbox format.
// It is also used by match subcommand.
func outputMbox(ctx context.Context, summaries []*client.MessageSummary) error {
	for _, s := range summaries {
		source, err := s.GetSource(ctx)
		if err != nil {
			return fmt.Errorf("get source REST failed: %v", err)
		}

		fmt.Printf("From %s\n", s.From)
		// TODO Escape "From " in message bodies with >
		if _, err := source.WriteTo(os.Stdout); err != nil {
			return err
		}
		fmt.Println()
	}
	return nil
}
