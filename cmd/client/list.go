package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/driftmail/driftmail/pkg/rest/client"
	"github.com/google/subcommands"
)

type listCmd struct{}

func (*listCmd) Name() string {
	return "list"
}

func (*listCmd) Synopsis() string {
	return "list contents of mailbox"
}

func (*listCmd) Usage() string {
	return `list <mailbox>:
	list message IDs in mailbox, newest first
`
}

func (l *listCmd) SetFlags(f *flag.FlagSet) {}

func (l *listCmd) Execute(
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
		return fatal("REST call failed", err)
	}
	for _, s := range summaries {
		fmt.Println(s.ID)
	}

	return subcommands.ExitSuccess
}
