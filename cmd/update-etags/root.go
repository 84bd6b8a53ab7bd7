package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/phobologic/update-etags/internal/config"
	"github.com/phobologic/update-etags/internal/engine"
	"github.com/phobologic/update-etags/internal/runner"
)

// ExitError carries a process exit status out of a RunE handler.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	debug      bool
	projects   []string
	noMaster   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "update-etags",
		Short: "Rebuild Emacs tags files for configured projects",
		Long: TitleStyle.Render("update-etags") + SubtitleStyle.Render(" - rebuild Emacs tags files") + `

Walks every project in the configuration file, feeds the matching source
files to etags, and atomically replaces each project's tags file. A master
tags file that includes every project is rebuilt last.

` + SubtitleStyle.Render("Examples:") + `
  update-etags                     Update every project and the master
  update-etags -p api -p web       Update two projects, then the master
  update-etags watch               Update whenever sources change
  update-etags config show         Print the resolved configuration`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd.ErrOrStderr(), opts.debug)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runUpdate(cmd.Context(), cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultConfigFile, "configuration file")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	flags.StringArrayVarP(&opts.projects, "project", "p", nil, "only update the named project (repeatable)")
	flags.BoolVar(&opts.noMaster, "no-master", false, "do not rebuild the master tags file")

	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// setupLogging installs a charmbracelet logger as the slog default.
func setupLogging(w io.Writer, debug bool) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           level,
	})
	slog.SetDefault(slog.New(logger))
}

// load reads the configuration and applies --project.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	return cfg.Select(o.projects...)
}

// update runs one full pass and prints its summary.
func update(ctx context.Context, cfg *config.Config, opts *rootOptions, stdout, stderr io.Writer) error {
	eng := engine.New(&runner.Runner{Stderr: stderr, Timeout: cfg.Timeout})
	eng.NoMaster = opts.noMaster

	results, err := eng.UpdateAll(ctx, cfg)
	printSummary(stdout, results)
	for _, res := range results {
		if res.Status == engine.StatusFailed {
			slog.Error("update failed", "project", res.Project, "error", res.Err)
		}
	}
	return err
}

func runUpdate(ctx context.Context, cfg *config.Config, opts *rootOptions, stdout, stderr io.Writer) error {
	err := update(ctx, cfg, opts, stdout, stderr)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return &ExitError{Code: 130, Err: err}
	}
	return &ExitError{Code: 1, Err: fmt.Errorf("%d tags file(s) not updated", countFailures(err))}
}

// countFailures counts the project errors joined into err.
func countFailures(err error) int {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return 1
	}
	n := 0
	for _, e := range joined.Unwrap() {
		var pe *engine.ProjectError
		if errors.As(e, &pe) {
			n++
		}
	}
	return max(n, 1)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "update-etags "+versionString())
		},
	}
}
