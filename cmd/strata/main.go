// Package main provides the strata CLI entrypoint.
//
// strata moves objects between local disk, S3, GCS, Azure Blob, and the
// internal asset service through one command surface backed by a single
// job engine.
//
// Usage:
//
//	strata <command> [subcommand] [options]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	strataapp "github.com/justapithecus/strata/cli"
	"github.com/justapithecus/strata/cli/cmd"
	"github.com/justapithecus/strata/types"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	var app *strataapp.App

	cliApp := &cli.App{
		Name:           "strata",
		Usage:          "Multi-provider object storage CLI",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:          cmd.GlobalFlags(),
		Metadata:       map[string]interface{}{},
		ExitErrHandler: exitErrHandler,
		Before: func(c *cli.Context) error {
			bootstrapped, err := strataapp.Bootstrap(context.Background(), c.String("config"), c.String("secret-dir"), os.Getenv("STRATA_PASSPHRASE"))
			if err != nil {
				return err
			}
			app = bootstrapped
			c.App.Metadata["app"] = app
			return nil
		},
		After: func(c *cli.Context) error {
			if app != nil {
				return app.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmd.ListCommand(),
			cmd.StatCommand(),
			cmd.CpCommand(),
			cmd.MvCommand(),
			cmd.RmCommand(),
			cmd.MkdirCommand(),
			cmd.JobsCommand(),
			cmd.ProfilesCommand(),
			cmd.StateCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit() while printing
// unexpected errors that weren't wrapped.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
