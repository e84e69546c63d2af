package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/driftmail/driftmail/pkg/rest/client"
	"github.com/google/subcommands"
)

type watchCmd struct {
	count int
}

func (*watchCmd) Name() string {
	return "watch"
}

func (*watchCmd) Synopsis() string {
	return "print new messages as they arrive"
}

func (*watchCmd) Usage() string {
	return `watch [flags] <mailbox>:
	long-poll the mailbox, printing a line for each new message
`
}

func (w *watchCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&w.count, "count", 0, "exit after this many messages (0 = forever)")
}

func (w *watchCmd) Execute(
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

	seen := 0
	for {
		summary, err := c.NextMessage(ctx, mailbox)
		if err != nil {
			return fatal("Watch REST call failed", err)
		}
		if summary == nil {
			// Empty long-poll window, ask again.
			continue
		}
		fmt.Printf("%s %s %q\n", summary.ID, summary.From, summary.Subject)
		seen++
		if w.count > 0 && seen >= w.count {
			break
		}
	}

	return subcommands.ExitSuccess
}
