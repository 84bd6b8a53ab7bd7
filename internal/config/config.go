// Package config loads the update-etags configuration file and resolves it
// into immutable per-project tagging specs.
//
// Inheritance runs default -> global -> project. Executable, tags dir and
// temp dir are replaced by a project override; tool arguments and skipped
// directories accumulate.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile is the config location used when none is given.
	DefaultConfigFile = "~/.update-etags.yaml"
	// DefaultTagsDir holds the tags files when tags-dir is not set.
	DefaultTagsDir = "~/.etags"
	// DefaultExecutable is the tag generator used when etags-command is not set.
	DefaultExecutable = "etags"
	// DefaultMasterName names the aggregate tags file.
	DefaultMasterName = "TAGS"
	// StdinSentinel tells the tag tool to read file names from standard input.
	StdinSentinel = "-"

	tempSubdir = "temp"
)

// RawConfig mirrors the configuration file. Pointer fields and nil slices
// distinguish "absent" from "empty".
type RawConfig struct {
	TagsDir      *string       `mapstructure:"tags-dir"`
	TempDir      *string       `mapstructure:"temp-dir"`
	EtagsCommand *string       `mapstructure:"etags-command"`
	EtagsArgs    []string      `mapstructure:"etags-args"`
	SkipDirs     []string      `mapstructure:"skip-dirs"`
	IgnoreCase   bool          `mapstructure:"ignore-case"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Projects     []RawProject  `mapstructure:"projects"`
	Master       *RawMaster    `mapstructure:"master"`
}

// RawProject is one entry of the projects list.
type RawProject struct {
	Name             string   `mapstructure:"name"`
	Path             *string  `mapstructure:"path"`
	FileTypes        []string `mapstructure:"file-types"`
	EtagsCommand     *string  `mapstructure:"etags-command"`
	EtagsArgs        []string `mapstructure:"etags-args"`
	SkipDirs         []string `mapstructure:"skip-dirs"`
	TagsDir          *string  `mapstructure:"tags-dir"`
	TempDir          *string  `mapstructure:"temp-dir"`
	RespectGitignore bool     `mapstructure:"respect-gitignore"`
}

// RawMaster is the master entry.
type RawMaster struct {
	Name         string   `mapstructure:"name"`
	EtagsCommand *string  `mapstructure:"etags-command"`
	EtagsArgs    []string `mapstructure:"etags-args"`
	TagsDir      *string  `mapstructure:"tags-dir"`
	TempDir      *string  `mapstructure:"temp-dir"`
	Flatten      bool     `mapstructure:"flatten"`
}

// Load reads and resolves the config file at path.
func Load(path string) (*Config, error) {
	raw, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Resolve(raw)
	if err != nil {
		return nil, withPath(err, path)
	}
	return cfg, nil
}

// LoadFile reads the YAML file at path without resolving it.
func LoadFile(path string) (*RawConfig, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	if !fileExists(path) {
		return nil, &ConfigurationError{Path: path, Err: ErrMissingConfiguration}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	raw, err := decode(v)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return raw, nil
}

// Parse reads YAML configuration from r without resolving it.
func Parse(r io.Reader) (*RawConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	raw, err := decode(v)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return raw, nil
}

func decode(v *viper.Viper) (*RawConfig, error) {
	var raw RawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &raw, nil
}

// NormalizePath expands a leading "~", makes path absolute and cleans it.
// Symlinks are resolved in the longest existing prefix of the path, so
// the result does not change once missing components are created.
func NormalizePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return resolveExisting(abs), nil
}

// resolveExisting evaluates symlinks in the longest existing ancestor of
// abs and re-joins the missing remainder.
func resolveExisting(abs string) string {
	var missing []string
	dir := abs
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		missing = append([]string{filepath.Base(dir)}, missing...)
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
