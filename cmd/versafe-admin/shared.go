package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/versafe/versafe-core/internal/config"
	"github.com/versafe/versafe-core/internal/core"
	"github.com/versafe/versafe-core/internal/logging"
)

// buildCore wires a Core the same way cmd/versafe-server does, for
// subcommands that need direct access to the ledger, audit store, or DB.
func buildCore(cctx *cli.Context) (*core.Core, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, err
	}
	log := logging.New(os.Stderr, "versafe-admin")
	return core.New(context.Background(), cfg, log)
}
