package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/versafe/versafe-core/internal/clihelpers"
	"github.com/versafe/versafe-core/internal/flags"
	"github.com/versafe/versafe-core/internal/signature"
)

var commandKeys = &cli.Command{
	Name:     "keys",
	Usage:    "manage DIGITAL signature key material",
	Category: flags.IdentityCategory,
	Subcommands: []*cli.Command{
		{
			Name:  "enroll",
			Usage: "generate and store a new signing key for a signer",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "signer", Required: true, Category: flags.IdentityCategory},
				&cli.StringFlag{Name: "algo", Value: string(signature.AlgoEd25519), Usage: "RSA-PSS-SHA256 | ECDSA-P256 | Ed25519", Category: flags.IdentityCategory},
			},
			Action: keysEnroll,
		},
	},
}

func keysEnroll(cctx *cli.Context) error {
	c, err := buildCore(cctx)
	if err != nil {
		clihelpers.Fatalf(clihelpers.ExitInternal, "build core: %v", err)
	}
	defer c.Close()

	fmt.Fprint(os.Stderr, "passphrase: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		clihelpers.Fatalf(clihelpers.ExitUsage, "read passphrase: %v", err)
	}

	key, err := c.Keys.Enroll(cctx.String("signer"), signature.KeyAlgo(cctx.String("algo")), string(raw))
	if err != nil {
		clihelpers.Fatalf(clihelpers.ExitInternal, "enroll key: %v", err)
	}
	clihelpers.Printf("enrolled %s key for signer %s", key.Algo, cctx.String("signer"))
	return nil
}
