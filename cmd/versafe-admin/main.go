package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/versafe/versafe-core/internal/clihelpers"
	"github.com/versafe/versafe-core/internal/flags"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""
var gitDate = ""

var app *cli.App

var configFlag = &cli.StringFlag{
	Name:     "config",
	Usage:    "path to a TOML config file (optional; environment variables always win)",
	Category: flags.MiscCategory,
}

func init() {
	app = flags.NewApp(gitCommit, gitDate, "VerSafe operator CLI: outbox, audit chain, and fleet stats")
	app.Flags = []cli.Flag{configFlag}
	app.Commands = []*cli.Command{
		commandOutbox,
		commandAudit,
		commandKeys,
		commandStats,
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(clihelpers.ExitUsage)
	}
}
