package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bashhack/gitjournal/internal/config"
	"github.com/bashhack/gitjournal/internal/constants"
	journalErrors "github.com/bashhack/gitjournal/internal/errors"
)

// Version information - injected at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// forceExitAfter is how long a signalled daemon may spend on its final
// flush before it is stopped anyway.
const forceExitAfter = 30 * time.Second

func main() {
	app := NewDefaultApp(config.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-c
		_, _ = fmt.Fprintf(app.Stdout, "\nReceived signal %v, stopping gitjournal...\n", sig)
		cancel()

		select {
		case <-c:
			// A second signal skips the final flush.
		case <-time.After(forceExitAfter):
		}
		app.CleanupOnSignal()
		app.exit(1)
	}()

	if err := newRootCommand(app).ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(app.Stderr, "❌ Error: %v\n", err)
		_ = app.Close()
		app.exit(1)
	}
	_ = app.Close()
}

// newRootCommand builds the gitjournal command. Flags are bound to the
// app's Config and merged with the environment and config file before the
// app runs.
func newRootCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Journal a working tree into debounced git commits",
		Long: "gitjournal watches a working tree and records debounced snapshot commits on a\n" +
			"dedicated ref, with metadata in git notes. Other tools can attach events to\n" +
			"the next snapshot with POST /log_event.",
		Version:       versionString(app.Config.VersionInfo),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Config.Load(cmd.Flags()); err != nil {
				return err
			}

			if err := app.Run(cmd.Context()); err != nil {
				return err
			}
			app.PrintSummary()
			return nil
		},
	}

	cmd.SetOut(app.Stdout)
	cmd.SetErr(app.Stderr)
	cmd.SetVersionTemplate(constants.AppName + " {{.Version}}\n")

	app.Config.SetupFlags(cmd.Flags())

	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		app.Config.PrintUsage(c.Flags(), c.OutOrStdout())
	})
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		if journalErrors.Is(err, pflag.ErrHelp) {
			return err
		}
		return journalErrors.NewConfigError("flags", nil, journalErrors.Wrap(journalErrors.ErrInvalidFlag, err.Error()))
	})

	return cmd
}
