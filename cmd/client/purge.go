package main

import (
	"context"
	"flag"

	"github.com/driftmail/driftmail/pkg/rest/client"
	"github.com/google/subcommands"
)

type purgeCmd struct{}

func (*purgeCmd) Name() string {
	return "purge"
}

func (*purgeCmd) Synopsis() string {
	return "delete all messages in mailbox"
}

func (*purgeCmd) Usage() string {
	return `purge <mailbox>:
	delete all messages in mailbox
`
}

func (p *purgeCmd) SetFlags(f *flag.FlagSet) {}

func (p *purgeCmd) Execute(
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

	if err := c.PurgeMailbox(ctx, mailbox); err != nil {
		return fatal("Purge REST call failed", err)
	}

	return subcommands.ExitSuccess
}
