// tsetags writes an Emacs TAGS file for Go, Python and Ruby sources using
// tree-sitter. Its command line follows etags, so update-etags can use it
// as etags-command:
//
//	tsetags -o FILE [--include FILE]... [-] [FILE]...
//
// A "-" argument reads further file names from standard input, one per line.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/update-etags/internal/etags"
	"github.com/phobologic/update-etags/internal/lang"
	"github.com/phobologic/update-etags/internal/model"
	"github.com/phobologic/update-etags/internal/parse"
)

var version = "dev"

const defaultMaxFileSize = 1_000_000 // 1 MB

// etagsValueFlags are etags options with an argument that tsetags ignores.
var etagsValueFlags = []struct{ long, short string }{
	{"language", "l"},
	{"regex", "r"},
	{"parse-stdin", ""},
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "tsetags: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		output      string
		includes    []string
		maxFileSize int
	)

	cmd := &cobra.Command{
		Use:           "tsetags [-o FILE] [--include FILE]... [-] [FILE]...",
		Short:         "Write an Emacs TAGS file using tree-sitter",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, paths []string) error {
			files, err := collectFiles(paths, stdin)
			if err != nil {
				return err
			}
			tagged := tagFilesConcurrent(files, maxFileSize, stderr)
			return writeTags(output, stdout, includes, tagged)
		},
	}
	// etags options we do not implement are accepted and ignored. Those
	// taking a value are declared so the value is not read as a file name.
	cmd.FParseErrWhitelist.UnknownFlags = true
	var ignored []string
	for _, f := range etagsValueFlags {
		cmd.Flags().StringArrayVarP(&ignored, f.long, f.short, nil, "ignored")
		_ = cmd.Flags().MarkHidden(f.long)
	}
	cmd.Flags().StringVarP(&output, "output", "o", "TAGS", `output file, "-" for standard output`)
	cmd.Flags().StringArrayVarP(&includes, "include", "i", nil, "add an include section for another tags file")
	cmd.Flags().IntVar(&maxFileSize, "max-file-size", defaultMaxFileSize, "skip files larger than this many bytes")

	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

// collectFiles expands "-" into the file names read from stdin, keeping
// argument order.
func collectFiles(args []string, stdin io.Reader) ([]string, error) {
	var files []string
	for _, arg := range args {
		if arg != "-" {
			files = append(files, arg)
			continue
		}
		sc := bufio.NewScanner(stdin)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if name := sc.Text(); name != "" {
				files = append(files, name)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading file names: %w", err)
		}
	}
	return files, nil
}

func writeTags(output string, stdout io.Writer, includes []string, files []model.FileTags) error {
	if output == "-" {
		return etags.Encode(stdout, includes, files)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := etags.Encode(f, includes, files); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", output, err)
	}
	return f.Close()
}

// tagFilesConcurrent parses files on GOMAXPROCS workers and returns the
// results in input order. Unreadable or oversized files are reported on
// stderr and left out; files in unsupported languages get an empty section.
func tagFilesConcurrent(files []string, maxSize int, stderr io.Writer) []model.FileTags {
	var stderrMu sync.Mutex
	warn := func(format string, args ...any) {
		stderrMu.Lock()
		defer stderrMu.Unlock()
		_, _ = fmt.Fprintf(stderr, "Warning: "+format+"\n", args...)
	}

	// Workers write only their own slots, so no locking is needed.
	tagged := make([]model.FileTags, len(files))
	valid := make([]bool, len(files))

	work := make(chan int, len(files))
	for i := range files {
		work <- i
	}
	close(work)

	var g errgroup.Group
	for range min(runtime.GOMAXPROCS(0), len(files)) {
		g.Go(func() error {
			// Parsers are not goroutine-safe; each worker keeps its own.
			parsers := make(map[string]*sitter.Parser)
			for idx := range work {
				path := files[idx]
				source, err := readSource(path, maxSize)
				if err != nil {
					warn("%s: %v", path, err)
					continue
				}

				ft := model.FileTags{Path: path}
				if l, ok := lang.ForPath(path); ok {
					p, ok := parsers[l.Name]
					if !ok {
						p = l.NewParser()
						parsers[l.Name] = p
					}
					ft.Tags = parse.ExtractTags(l, p, source)
				}
				tagged[idx] = ft
				valid[idx] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.FileTags, 0, len(files))
	for i, ok := range valid {
		if ok {
			out = append(out, tagged[i])
		}
	}
	return out
}

func readSource(path string, maxSize int) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file")
	}
	if maxSize > 0 && fi.Size() > int64(maxSize) {
		return nil, fmt.Errorf("skipped (>%d bytes)", maxSize)
	}
	return os.ReadFile(path)
}
