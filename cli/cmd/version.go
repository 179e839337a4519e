package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/strata/types"
)

// VersionCommand reports the canonical module version and build commit.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{FormatFlag},
		Action: func(c *cli.Context) error {
			row := map[string]string{"version": types.Version, "commit": commit}
			return render(c, os.Stdout, row)
		},
	}
}
