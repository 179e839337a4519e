// Package cmd provides the CLI commands for the strata binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags across commands.
var (
	// FormatFlag selects output format: json or table.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "table",
		Usage:   "Output format: json, table",
	}

	// ConfigFlag points at the strata.yaml configuration file.
	ConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to strata.yaml",
	}

	// SecretDirFlag overrides the encrypted profile store's directory.
	SecretDirFlag = &cli.StringFlag{
		Name:  "secret-dir",
		Usage: "Directory holding encrypted connection profiles",
		Value: ".strata-secrets",
	}

	// RecursiveFlag enables recursive delete of non-empty directories.
	RecursiveFlag = &cli.BoolFlag{
		Name:  "recursive",
		Usage: "Delete a non-empty directory and everything under it",
	}

	// AllowCrossDeviceFlag opts a recursive delete into crossing a
	// filesystem boundary or descending into a path owned by a different
	// user, which is refused by default.
	AllowCrossDeviceFlag = &cli.BoolFlag{
		Name:  "allow-cross-device",
		Usage: "Allow a recursive delete to cross mount points or descend into paths owned by another user",
	}

	// WaitFlag blocks the CLI until the submitted job reaches a terminal
	// state instead of returning immediately with its ID.
	WaitFlag = &cli.BoolFlag{
		Name:  "wait",
		Usage: "Block until the job completes",
	}
)

// GlobalFlags returns the flags accepted by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, SecretDirFlag, FormatFlag}
}
