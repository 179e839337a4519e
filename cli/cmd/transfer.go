package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	strataapp "github.com/justapithecus/strata/cli"
	"github.com/justapithecus/strata/types"
	"github.com/justapithecus/strata/uri"
)

func app(c *cli.Context) *strataapp.App {
	return c.App.Metadata["app"].(*strataapp.App)
}

func parseURIArg(c *cli.Context, n int) (types.URI, error) {
	raw := c.Args().Get(n)
	if raw == "" {
		return types.URI{}, cli.Exit(fmt.Sprintf("missing argument %d", n+1), 1)
	}
	u, err := uri.Parse(raw)
	if err != nil {
		return types.URI{}, cli.Exit(err.Error(), 1)
	}
	return u, nil
}

// ListCommand lists objects under a directory/prefix URI.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List objects under a URI",
		ArgsUsage: "<uri>",
		Flags:     []cli.Flag{FormatFlag},
		Action: func(c *cli.Context) error {
			u, err := parseURIArg(c, 0)
			if err != nil {
				return err
			}
			result, err := app(c).Planner.List(c.Context, u, types.ListOptions{})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			rows := make([]map[string]string, 0, len(result.Items))
			for _, item := range result.Items {
				rows = append(rows, map[string]string{
					"name":     item.Name,
					"size":     fmt.Sprintf("%d", item.Size),
					"modified": item.LastModified.Format("2006-01-02T15:04:05Z07:00"),
				})
			}
			return render(c, os.Stdout, rows)
		},
	}
}

// StatCommand reports metadata for a single object or directory marker.
func StatCommand() *cli.Command {
	return &cli.Command{
		Name:      "stat",
		Usage:     "Show metadata for one object",
		ArgsUsage: "<uri>",
		Flags:     []cli.Flag{FormatFlag},
		Action: func(c *cli.Context) error {
			u, err := parseURIArg(c, 0)
			if err != nil {
				return err
			}
			info, err := app(c).Planner.Stat(c.Context, u)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			row := map[string]string{
				"name":     info.Name,
				"size":     fmt.Sprintf("%d", info.Size),
				"modified": info.LastModified.Format("2006-01-02T15:04:05Z07:00"),
				"etag":     info.ETag,
			}
			return render(c, os.Stdout, row)
		},
	}
}

// MkdirCommand creates a directory URI (a zero-byte marker for flat stores).
func MkdirCommand() *cli.Command {
	return &cli.Command{
		Name:      "mkdir",
		Usage:     "Create a directory",
		ArgsUsage: "<uri>",
		Action: func(c *cli.Context) error {
			u, err := parseURIArg(c, 0)
			if err != nil {
				return err
			}
			if err := app(c).Planner.Mkdir(c.Context, u); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// RmCommand deletes an object or, with --recursive, a whole directory.
func RmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete an object or directory",
		ArgsUsage: "<uri>",
		Flags:     []cli.Flag{RecursiveFlag, AllowCrossDeviceFlag},
		Action: func(c *cli.Context) error {
			u, err := parseURIArg(c, 0)
			if err != nil {
				return err
			}
			opts := types.DeleteOptions{
				Recursive:        c.Bool("recursive"),
				AllowCrossDevice: c.Bool("allow-cross-device"),
			}
			if err := app(c).Planner.Delete(c.Context, u, opts); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// CpCommand submits a copy job from src to dst, either through the job
// engine (default, returns immediately with a job ID) or synchronously
// with --wait.
func CpCommand() *cli.Command {
	return &cli.Command{
		Name:      "cp",
		Usage:     "Copy an object, possibly across providers",
		ArgsUsage: "<src-uri> <dst-uri>",
		Flags:     []cli.Flag{WaitFlag},
		Action:    transferAction(types.JobCopy),
	}
}

// MvCommand submits a move job from src to dst.
func MvCommand() *cli.Command {
	return &cli.Command{
		Name:      "mv",
		Usage:     "Move an object, possibly across providers",
		ArgsUsage: "<src-uri> <dst-uri>",
		Flags:     []cli.Flag{WaitFlag},
		Action:    transferAction(types.JobMove),
	}
}

func transferAction(kind types.JobKind) cli.ActionFunc {
	return func(c *cli.Context) error {
		src, err := parseURIArg(c, 0)
		if err != nil {
			return err
		}
		dst, err := parseURIArg(c, 1)
		if err != nil {
			return err
		}
		a := app(c)
		id, err := a.Engine.Enqueue(kind, src, &dst, nil)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if !c.Bool("wait") {
			fmt.Fprintln(c.App.Writer, id)
			return nil
		}
		return waitAndReport(c, id)
	}
}
