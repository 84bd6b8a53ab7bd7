package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConfiguration is wrapped when the config file does not exist.
	ErrMissingConfiguration = errors.New("configuration file not found")
	// ErrMissingName is wrapped when a project entry has no name.
	ErrMissingName = errors.New("missing required field \"name\"")
	// ErrInvalidName is wrapped when a name cannot be used as a file name.
	ErrInvalidName = errors.New("name must be a plain file name")
	// ErrDuplicateProject is wrapped when two projects share a tags file.
	ErrDuplicateProject = errors.New("duplicate project")
	// ErrNoSuchProject is wrapped when a selected project is not configured.
	ErrNoSuchProject = errors.New("no such project")
)

// ConfigurationError reports an unusable configuration. It is always fatal
// and is raised before any tag tool runs.
type ConfigurationError struct {
	// Path is the config file, if known.
	Path string
	// Field locates the offending key, e.g. "projects[2].name".
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	msg := e.Err.Error()
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	return "configuration error: " + msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func fieldError(field string, err error) error {
	return &ConfigurationError{Field: field, Err: err}
}

// withPath fills in Path on a ConfigurationError produced without one.
func withPath(err error, path string) error {
	var ce *ConfigurationError
	if errors.As(err, &ce) && ce.Path == "" {
		ce.Path = path
	}
	return err
}
