package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/update-etags/internal/config"
)

const starterHeader = `# update-etags configuration.
#
# Global etags-args and skip-dirs are added to every project's own;
# etags-command, tags-dir and temp-dir are replaced by project values.
`

var starterFileTypes = []string{"*.c", "*.h", "*.go", "*.py", "*.rb", "*.js", "*.el"}

type starterProject struct {
	Name      string   `yaml:"name"`
	Path      string   `yaml:"path"`
	FileTypes []string `yaml:"file-types,flow"`
}

type starterMaster struct {
	Name string `yaml:"name"`
}

type starterConfig struct {
	TagsDir      string           `yaml:"tags-dir"`
	EtagsCommand string           `yaml:"etags-command"`
	SkipDirs     []string         `yaml:"skip-dirs,flow"`
	Projects     []starterProject `yaml:"projects"`
	Master       starterMaster    `yaml:"master"`
}

func newInitCmd() *cobra.Command {
	var (
		dryRun   bool
		force    bool
		projects []string
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file",
		Long: `Write a starter configuration with one project per --dir (the current
directory when none is given). path defaults to ` + config.DefaultConfigFile + `.
An existing file is only replaced with --force.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(projects) == 0 {
				projects = []string{"."}
			}
			content, err := generateStarter(projects)
			if err != nil {
				return err
			}

			if dryRun {
				_, err := io.WriteString(cmd.OutOrStdout(), content)
				return err
			}

			path := config.DefaultConfigFile
			if len(args) > 0 {
				path = args[0]
			}
			return writeStarter(path, content, force, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the configuration instead of writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	cmd.Flags().StringArrayVar(&projects, "dir", nil, "add a project for this directory (repeatable)")
	return cmd
}

// generateStarter renders a configuration with one project per directory.
// The result is parsed and resolved before it is returned.
func generateStarter(dirs []string) (string, error) {
	doc := starterConfig{
		TagsDir:      config.DefaultTagsDir,
		EtagsCommand: config.DefaultExecutable,
		SkipDirs:     []string{".git", ".hg", ".svn", "node_modules"},
		Master:       starterMaster{Name: config.DefaultMasterName},
	}

	seen := make(map[string]int)
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", dir, err)
		}
		name := filepath.Base(abs)
		if name == config.DefaultMasterName || name == string(filepath.Separator) {
			name = "root"
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name += "-" + strconv.Itoa(n)
		}
		doc.Projects = append(doc.Projects, starterProject{
			Name:      name,
			Path:      abs,
			FileTypes: starterFileTypes,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(starterHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encoding configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	raw, err := config.Parse(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", err
	}
	if _, err := config.Resolve(raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeStarter(path, content string, force bool, stderr io.Writer) error {
	path, err := config.NormalizePath(path)
	if err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s already exists (use --force to replace it)", path)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if _, err := io.WriteString(f, content); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote configuration to %s\n", path)
	return nil
}
