package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/phobologic/update-etags/internal/match"
)

var defaultFileTypes = []string{"*"}

// Resolve builds the run configuration from raw file data. Ordinary
// projects are resolved first, in declaration order; the master is then
// derived from their tags paths.
func Resolve(raw *RawConfig) (*Config, error) {
	if raw == nil {
		raw = &RawConfig{}
	}

	cfg, err := resolveGlobals(raw)
	if err != nil {
		return nil, err
	}

	names := make(map[string]int, len(raw.Projects))
	seen := make(map[string]int, len(raw.Projects))
	for i, rp := range raw.Projects {
		p, err := resolveProject(cfg, rp, fmt.Sprintf("projects[%d]", i))
		if err != nil {
			return nil, err
		}
		if j, dup := names[p.Name]; dup {
			return nil, fieldError(fmt.Sprintf("projects[%d].name", i),
				fmt.Errorf("%w: %q is already used by projects[%d]", ErrDuplicateProject, p.Name, j))
		}
		names[p.Name] = i
		seen[p.TagsPath()] = i
		cfg.Projects = append(cfg.Projects, p)
	}

	master, err := resolveMaster(cfg, raw.Master)
	if err != nil {
		return nil, err
	}
	if j, dup := seen[master.TagsPath()]; dup {
		return nil, fieldError("master.name",
			fmt.Errorf("%w: master %q has the same tags file as projects[%d]", ErrDuplicateProject, master.Name, j))
	}
	cfg.Master = master

	return cfg, nil
}

func resolveGlobals(raw *RawConfig) (*Config, error) {
	tagsDir, err := NormalizePath(stringOr(raw.TagsDir, DefaultTagsDir))
	if err != nil {
		return nil, fieldError("tags-dir", err)
	}
	tempDir := filepath.Join(tagsDir, tempSubdir)
	if raw.TempDir != nil {
		if tempDir, err = NormalizePath(*raw.TempDir); err != nil {
			return nil, fieldError("temp-dir", err)
		}
	}
	if err := match.Validate(raw.SkipDirs); err != nil {
		return nil, fieldError("skip-dirs", err)
	}

	return &Config{
		TagsDir:    tagsDir,
		TempDir:    tempDir,
		Executable: stringOr(raw.EtagsCommand, DefaultExecutable),
		Args:       slices.Clone(raw.EtagsArgs),
		SkipDirs:   slices.Clone(raw.SkipDirs),
		IgnoreCase: raw.IgnoreCase,
		Timeout:    raw.Timeout,
	}, nil
}

// inherit applies the override rules shared by projects and the master.
func inherit(cfg *Config, field, name string, command, tagsDir, tempDir *string, args, skipDirs []string) (ProjectSpec, error) {
	if name == "" {
		return ProjectSpec{}, fieldError(field+".name", ErrMissingName)
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return ProjectSpec{}, fieldError(field+".name", fmt.Errorf("%w: %q", ErrInvalidName, name))
	}
	if err := match.Validate(skipDirs); err != nil {
		return ProjectSpec{}, fieldError(field+".skip-dirs", err)
	}

	p := ProjectSpec{
		Name:       name,
		FileTypes:  slices.Clone(defaultFileTypes),
		Executable: stringOr(command, cfg.Executable),
		Args:       concat(cfg.Args, args),
		SkipDirs:   concat(cfg.SkipDirs, skipDirs),
		TagsDir:    cfg.TagsDir,
		TempDir:    cfg.TempDir,
	}

	var err error
	if tagsDir != nil {
		if p.TagsDir, err = NormalizePath(*tagsDir); err != nil {
			return ProjectSpec{}, fieldError(field+".tags-dir", err)
		}
	}
	if tempDir != nil {
		if p.TempDir, err = NormalizePath(*tempDir); err != nil {
			return ProjectSpec{}, fieldError(field+".temp-dir", err)
		}
	}
	return p, nil
}

func resolveProject(cfg *Config, rp RawProject, field string) (ProjectSpec, error) {
	p, err := inherit(cfg, field, rp.Name, rp.EtagsCommand, rp.TagsDir, rp.TempDir, rp.EtagsArgs, rp.SkipDirs)
	if err != nil {
		return ProjectSpec{}, err
	}

	if rp.FileTypes != nil {
		if err := match.Validate(rp.FileTypes); err != nil {
			return ProjectSpec{}, fieldError(field+".file-types", err)
		}
		p.FileTypes = slices.Clone(rp.FileTypes)
	}
	if !slices.Contains(p.Args, StdinSentinel) {
		p.Args = append(p.Args, StdinSentinel)
	}
	p.RespectGitignore = rp.RespectGitignore

	if rp.Path != nil {
		if p.SourcePath, err = NormalizePath(*rp.Path); err != nil {
			return ProjectSpec{}, fieldError(field+".path", err)
		}
		if _, err := os.Stat(p.SourcePath); err != nil {
			slog.Warn("project path does not exist", "project", p.Name, "path", p.SourcePath)
		}
	}
	return p, nil
}

func resolveMaster(cfg *Config, rm *RawMaster) (MasterSpec, error) {
	if rm == nil {
		rm = &RawMaster{}
	}
	name := rm.Name
	if name == "" {
		name = DefaultMasterName
	}

	includes := make([]string, 0, len(cfg.Projects))
	args := slices.Clone(rm.EtagsArgs)
	for _, p := range cfg.Projects {
		includes = append(includes, p.TagsPath())
		args = append(args, "--include", p.TagsPath())
	}

	p, err := inherit(cfg, "master", name, rm.EtagsCommand, rm.TagsDir, rm.TempDir, args, nil)
	if err != nil {
		return MasterSpec{}, err
	}
	return MasterSpec{ProjectSpec: p, Includes: includes, Flatten: rm.Flatten}, nil
}

func stringOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

// concat returns a fresh slice holding base followed by extra.
func concat(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
