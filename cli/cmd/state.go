package cmd

import (
	"io"

	"github.com/urfave/cli/v2"
)

// StateCommand exposes the shell's opaque UI-state document as raw
// bytes, loaded from or saved to stdin/stdout so any shell process can
// pipe its own serialization through without this binary parsing it.
func StateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Load or save the shell's opaque UI-state document",
		Subcommands: []*cli.Command{
			stateLoadCommand(),
			stateSaveCommand(),
		},
	}
}

func stateLoadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Print the stored state document to stdout",
		Action: func(c *cli.Context) error {
			doc, err := app(c).State.Load()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			_, err = c.App.Writer.Write(doc)
			return err
		},
	}
}

func stateSaveCommand() *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Replace the stored state document with stdin",
		Action: func(c *cli.Context) error {
			doc, err := io.ReadAll(c.App.Reader)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if err := app(c).State.Save(doc); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
