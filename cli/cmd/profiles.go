package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// ProfilesCommand groups connection profile management subcommands,
// operating directly on the encrypted secret store.
func ProfilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "profiles",
		Usage: "Manage encrypted connection profiles",
		Subcommands: []*cli.Command{
			profilesListCommand(),
			profilesRemoveCommand(),
		},
	}
}

func profilesListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored profiles and their readability",
		Flags: []cli.Flag{FormatFlag},
		Action: func(c *cli.Context) error {
			statuses, err := app(c).Secrets.List()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			rows := make([]map[string]string, 0, len(statuses))
			for _, s := range statuses {
				unreadable := "false"
				if s.Unreadable {
					unreadable = "true"
				}
				rows = append(rows, map[string]string{"id": s.ID, "unreadable": unreadable})
			}
			return render(c, os.Stdout, rows)
		},
	}
}

func profilesRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Delete a stored profile",
		ArgsUsage: "<profile-id>",
		Action: func(c *cli.Context) error {
			if err := app(c).Secrets.Delete(c.Args().Get(0)); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
