package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/strata/types"
)

// waitAndReport blocks until job id reaches a terminal state, then prints
// its final status and exits non-zero on failure, mirroring the exit-code
// discipline commands in this family already follow.
func waitAndReport(c *cli.Context, id string) error {
	a := app(c)
	ch := a.Engine.Subscribe()
	defer a.Engine.Unsubscribe(ch)

	// Another goroutine may have already finished the job between Enqueue
	// and Subscribe; poll once up front before waiting on events.
	if j, err := a.Engine.Job(id); err == nil && j.Status.Terminal() {
		return reportJob(c, j)
	}

	for ev := range ch {
		if ev.JobID != id {
			continue
		}
		switch ev.Kind {
		case "completed", "failed", "canceled":
			j, err := a.Engine.Job(id)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return reportJob(c, j)
		}
	}
	return cli.Exit("job event stream closed before job reached a terminal state", 1)
}

func reportJob(c *cli.Context, j types.Job) error {
	row := map[string]string{
		"id":     j.ID,
		"kind":   string(j.Kind),
		"status": string(j.Status),
		"error":  j.Error,
	}
	if err := render(c, c.App.Writer, row); err != nil {
		return err
	}
	if j.Status == types.JobFailed {
		return cli.Exit("", 1)
	}
	return nil
}

// JobsCommand groups job inspection and lifecycle control subcommands.
func JobsCommand() *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect and control background transfer jobs",
		Subcommands: []*cli.Command{
			jobShowCommand(),
			jobCancelCommand(),
			jobPauseCommand(),
			jobResumeCommand(),
		},
	}
}

func jobShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a job's current state",
		ArgsUsage: "<job-id>",
		Flags:     []cli.Flag{FormatFlag},
		Action: func(c *cli.Context) error {
			id := c.Args().Get(0)
			j, err := app(c).Engine.Job(id)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			row := map[string]string{
				"id":     j.ID,
				"kind":   string(j.Kind),
				"status": string(j.Status),
				"error":  j.Error,
			}
			return render(c, os.Stdout, row)
		},
	}
}

func jobCancelCommand() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Cancel a job",
		ArgsUsage: "<job-id>",
		Action: func(c *cli.Context) error {
			if err := app(c).Engine.Cancel(c.Args().Get(0)); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func jobPauseCommand() *cli.Command {
	return &cli.Command{
		Name:      "pause",
		Usage:     "Pause a job",
		ArgsUsage: "<job-id>",
		Action: func(c *cli.Context) error {
			if err := app(c).Engine.Pause(c.Args().Get(0)); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func jobResumeCommand() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Resume a paused job",
		ArgsUsage: "<job-id>",
		Action: func(c *cli.Context) error {
			if err := app(c).Engine.Resume(c.Args().Get(0)); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
