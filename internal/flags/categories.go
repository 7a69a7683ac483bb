package flags

import "github.com/urfave/cli/v2"

const (
	LedgerCategory     = "LEDGER"
	AuditCategory      = "AUDIT"
	IdentityCategory   = "IDENTITY"
	MiscCategory       = "MISC"
	DeprecatedCategory = "ALIASED (deprecated)"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
