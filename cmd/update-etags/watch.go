package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/phobologic/update-etags/internal/match"
	"github.com/phobologic/update-etags/internal/watch"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Update tags whenever project sources change",
		Long: `Run a full update, then watch every project's source tree and run
again after files matching file-types change. Directories matching
skip-dirs are not watched. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

			// The first pass may fail; watching continues so a fix is picked up.
			if err := update(ctx, cfg, opts, stdout, stderr); err != nil && ctx.Err() != nil {
				return nil
			}

			w, err := watch.New(watch.Config{
				Projects: cfg.Projects,
				Matcher:  match.Matcher{IgnoreCase: cfg.IgnoreCase},
				Debounce: debounce,
				OnChange: func(ctx context.Context, changed []string) error {
					slog.Info("sources changed, updating", "files", len(changed))
					return update(ctx, cfg, opts, stdout, stderr)
				},
			})
			if err != nil {
				return err
			}
			slog.Info("watching projects", "count", len(cfg.Projects))
			return w.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before an update starts")
	return cmd
}
