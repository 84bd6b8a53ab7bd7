// Package engine drives a full tags update: every ordinary project in
// declaration order, then the master tags file.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/phobologic/update-etags/internal/config"
	"github.com/phobologic/update-etags/internal/discover"
	"github.com/phobologic/update-etags/internal/match"
	"github.com/phobologic/update-etags/internal/runner"
)

// ErrMasterSkipped is reported when the master tags file was not rebuilt
// because an ordinary project failed.
var ErrMasterSkipped = errors.New("master tags file not rebuilt because a project failed")

// Runner runs the tag tool for one tags file.
type Runner interface {
	Run(ctx context.Context, inv runner.Invocation) error
	Concat(ctx context.Context, sources []string, finalPath, tempPath string) error
}

// ProjectError ties a failure to the project that caused it.
type ProjectError struct {
	Project string
	Err     error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("project %s: %v", e.Project, e.Err)
}

func (e *ProjectError) Unwrap() error { return e.Err }

// Status is the outcome of one tags file.
type Status string

const (
	StatusUpdated Status = "updated"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result records what happened to one tags file.
type Result struct {
	Project  string
	TagsPath string
	Status   Status
	Master   bool
	Duration time.Duration
	Err      error
}

// Engine runs updates. It holds no state between runs.
type Engine struct {
	Runner Runner
	// NoMaster skips the master tags file entirely.
	NoMaster bool
}

// New returns an Engine using r.
func New(r Runner) *Engine {
	return &Engine{Runner: r}
}

// UpdateAll rebuilds every project's tags file, then the master.
//
// A failing project does not stop the others. The master is only rebuilt
// when every project succeeded, since it includes their tags files. The
// returned error joins one *ProjectError per failure, plus ErrMasterSkipped
// when applicable. Cancelling ctx stops before the next project.
func (e *Engine) UpdateAll(ctx context.Context, cfg *config.Config) ([]Result, error) {
	m := match.Matcher{IgnoreCase: cfg.IgnoreCase}
	results := make([]Result, 0, len(cfg.Projects)+1)
	var errs []error

	for _, p := range cfg.Projects {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			return results, errors.Join(errs...)
		}
		res := e.updateProject(ctx, p, m)
		results = append(results, res)
		if res.Err != nil {
			errs = append(errs, &ProjectError{Project: p.Name, Err: res.Err})
		}
	}

	if e.NoMaster {
		return results, errors.Join(errs...)
	}

	master := cfg.Master
	if len(errs) > 0 {
		slog.Warn("skipping master tags file", "name", master.Name, "failed", len(errs))
		results = append(results, Result{
			Project:  master.Name,
			TagsPath: master.TagsPath(),
			Status:   StatusSkipped,
			Master:   true,
			Err:      ErrMasterSkipped,
		})
		errs = append(errs, &ProjectError{Project: master.Name, Err: ErrMasterSkipped})
		return results, errors.Join(errs...)
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	res := e.updateMaster(ctx, master)
	results = append(results, res)
	if res.Err != nil {
		errs = append(errs, &ProjectError{Project: master.Name, Err: res.Err})
	}
	return results, errors.Join(errs...)
}

func (e *Engine) updateProject(ctx context.Context, p config.ProjectSpec, m match.Matcher) Result {
	slog.Info("updating tags", "project", p.Name, "path", p.SourcePath)

	var files iter.Seq[string]
	if p.HasSource() {
		files = discover.Files(p.SourcePath, discover.Options{
			Include:          p.FileTypes,
			SkipDirs:         p.SkipDirs,
			Matcher:          m,
			RespectGitignore: p.RespectGitignore,
		})
	}

	start := time.Now()
	err := e.Runner.Run(ctx, runner.Invocation{
		Executable: p.Executable,
		Args:       p.Args,
		FinalPath:  p.TagsPath(),
		TempPath:   p.TempPath(),
		Files:      files,
	})
	return finish(p.Name, p.TagsPath(), false, start, err)
}

func (e *Engine) updateMaster(ctx context.Context, master config.MasterSpec) Result {
	slog.Info("updating master tags", "name", master.Name, "projects", len(master.Includes))

	start := time.Now()
	var err error
	if master.Flatten {
		err = e.Runner.Concat(ctx, master.Includes, master.TagsPath(), master.TempPath())
	} else {
		err = e.Runner.Run(ctx, runner.Invocation{
			Executable: master.Executable,
			Args:       master.Args,
			FinalPath:  master.TagsPath(),
			TempPath:   master.TempPath(),
		})
	}
	return finish(master.Name, master.TagsPath(), true, start, err)
}

func finish(name, tagsPath string, master bool, start time.Time, err error) Result {
	res := Result{
		Project:  name,
		TagsPath: tagsPath,
		Status:   StatusUpdated,
		Master:   master,
		Duration: time.Since(start),
		Err:      err,
	}
	if err != nil {
		res.Status = StatusFailed
		slog.Debug("tags update failed", "project", name, "error", err)
	}
	return res
}
