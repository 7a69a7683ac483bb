package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// NewApp mirrors the teacher's flags.NewApp: a cli.App preloaded with the
// version/commit metadata a release build stamps in via linker flags.
func NewApp(gitCommit, gitDate, usage string) *cli.App {
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = usage
	app.Version = versionString(gitCommit, gitDate)
	app.Copyright = "(c) VerSafe"
	return app
}

func versionString(gitCommit, gitDate string) string {
	v := "dev"
	if gitCommit != "" {
		v = gitCommit
		if len(v) > 8 {
			v = v[:8]
		}
	}
	if gitDate != "" {
		return fmt.Sprintf("%s-%s", v, gitDate)
	}
	return v
}
