package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"
)

// ProjectSpec is the resolved, read-only configuration of one project.
type ProjectSpec struct {
	Name string `yaml:"name"`
	// SourcePath is the project root; empty when the project has no path.
	SourcePath       string   `yaml:"path,omitempty"`
	FileTypes        []string `yaml:"file-types"`
	SkipDirs         []string `yaml:"skip-dirs"`
	Executable       string   `yaml:"etags-command"`
	Args             []string `yaml:"etags-args"`
	TagsDir          string   `yaml:"tags-dir"`
	TempDir          string   `yaml:"temp-dir"`
	RespectGitignore bool     `yaml:"respect-gitignore,omitempty"`
}

// TagsPath is where the project's tags file is published.
func (p ProjectSpec) TagsPath() string {
	return filepath.Join(p.TagsDir, p.Name)
}

// TempPath is where the tool writes before the result is published.
func (p ProjectSpec) TempPath() string {
	return filepath.Join(p.TempDir, filepath.Base(p.TagsPath()))
}

// HasSource reports whether the project has a tree to walk.
func (p ProjectSpec) HasSource() bool {
	return p.SourcePath != ""
}

// MasterSpec is the aggregate index. Its Args already end with one
// "--include <tags path>" pair per ordinary project.
type MasterSpec struct {
	ProjectSpec `yaml:",inline"`
	// Includes lists the ordinary projects' tags paths in declaration order.
	Includes []string `yaml:"includes"`
	// Flatten concatenates Includes instead of invoking the tool.
	Flatten bool `yaml:"flatten,omitempty"`
}

// Config is the resolved configuration of a run.
type Config struct {
	TagsDir    string        `yaml:"tags-dir"`
	TempDir    string        `yaml:"temp-dir"`
	Executable string        `yaml:"etags-command"`
	Args       []string      `yaml:"etags-args"`
	SkipDirs   []string      `yaml:"skip-dirs"`
	IgnoreCase bool          `yaml:"ignore-case"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	// Projects holds the ordinary projects in declaration order.
	Projects []ProjectSpec `yaml:"projects"`
	// Master is always processed after every entry of Projects.
	Master MasterSpec `yaml:"master"`
}

// Specs returns every spec in processing order, master last.
func (c *Config) Specs() []ProjectSpec {
	specs := make([]ProjectSpec, 0, len(c.Projects)+1)
	specs = append(specs, c.Projects...)
	return append(specs, c.Master.ProjectSpec)
}

// Project returns the ordinary project called name.
func (c *Config) Project(name string) (ProjectSpec, bool) {
	i := slices.IndexFunc(c.Projects, func(p ProjectSpec) bool { return p.Name == name })
	if i < 0 {
		return ProjectSpec{}, false
	}
	return c.Projects[i], true
}

// Select returns a copy of c restricted to the named ordinary projects,
// kept in declaration order. The master is unchanged, so it still includes
// every project's tags file.
func (c *Config) Select(names ...string) (*Config, error) {
	if len(names) == 0 {
		return c, nil
	}
	for _, name := range names {
		if _, ok := c.Project(name); !ok {
			return nil, &ConfigurationError{Field: "project", Err: fmt.Errorf("%w: %q", ErrNoSuchProject, name)}
		}
	}
	out := *c
	out.Projects = nil
	for _, p := range c.Projects {
		if slices.Contains(names, p.Name) {
			out.Projects = append(out.Projects, p)
		}
	}
	return &out, nil
}
