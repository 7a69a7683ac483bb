package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/versafe/versafe-core/internal/clihelpers"
	"github.com/versafe/versafe-core/internal/flags"
)

var commandOutbox = &cli.Command{
	Name:     "outbox",
	Usage:    "inspect or drain the ledger submission outbox",
	Category: flags.LedgerCategory,
	Subcommands: []*cli.Command{
		{
			Name:   "depth",
			Usage:  "print the number of jobs waiting in the outbox",
			Action: outboxDepth,
		},
		{
			Name:   "drain",
			Usage:  "flush queued outbox jobs against the ledger, one at a time, until empty or one fails",
			Action: outboxDrain,
		},
	},
}

func outboxDepth(cctx *cli.Context) error {
	c, err := buildCore(cctx)
	if err != nil {
		clihelpers.Fatalf(clihelpers.ExitInternal, "build core: %v", err)
	}
	defer c.Close()

	depth, err := c.Ledger.OutboxDepth()
	if err != nil {
		clihelpers.Fatalf(clihelpers.ExitInternal, "read outbox depth: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Outbox depth"})
	table.Append([]string{fmt.Sprintf("%d", depth)})
	table.Render()
	return nil
}

func outboxDrain(cctx *cli.Context) error {
	c, err := buildCore(cctx)
	if err != nil {
		clihelpers.Fatalf(clihelpers.ExitInternal, "build core: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	flushed := 0
	for {
		did, err := c.Ledger.FlushOnce(ctx)
		if err != nil {
			clihelpers.Printf("drained %d job(s) before a ledger error", flushed)
			clihelpers.Fatalf(clihelpers.ExitLedgerUnavailable, "flush outbox: %v", err)
		}
		if !did {
			break
		}
		flushed++
	}
	clihelpers.Printf("drained %d job(s)", flushed)
	return nil
}
