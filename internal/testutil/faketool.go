// Package testutil provides a fake tag tool for tests that exercise real
// subprocesses. A test binary re-executes itself as the tool:
//
//	func TestMain(m *testing.M) {
//		testutil.MaybeRunFakeTool()
//		os.Exit(m.Run())
//	}
package testutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// FakeToolEnv selects the fake tool behaviour in the child process.
const FakeToolEnv = "UPDATE_ETAGS_FAKE_TOOL"

// Fake tool modes.
const (
	// ModeOK writes "args: ..." then one "file: <name>" line per stdin
	// line, and copies every --include file verbatim.
	ModeOK = "ok"
	// ModeFail writes partial output and exits with status 1.
	ModeFail = "fail"
	// ModeHang writes partial output and sleeps until killed.
	ModeHang = "hang"
	// ModeEarlyExit exits successfully without reading standard input.
	ModeEarlyExit = "early-exit"
)

// FakeTool returns the executable and environment that run the fake tool
// in mode.
func FakeTool(mode string) (string, []string) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return exe, []string{FakeToolEnv + "=" + mode}
}

// MaybeRunFakeTool acts as the fake tool and exits when FakeToolEnv is set.
// It must run before flag parsing.
func MaybeRunFakeTool() {
	mode := os.Getenv(FakeToolEnv)
	if mode == "" {
		return
	}
	os.Exit(runFakeTool(mode, os.Args[1:], os.Stdin))
}

func runFakeTool(mode string, args []string, stdin io.Reader) int {
	if mode == ModeEarlyExit {
		return 0
	}
	if len(args) < 2 || args[0] != "-o" {
		fmt.Fprintln(os.Stderr, "usage: fake -o FILE [args...]")
		return 2
	}
	out, err := os.Create(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer out.Close()

	rest := args[2:]
	fmt.Fprintf(out, "args: %s\n", strings.Join(rest, " "))

	switch mode {
	case ModeFail:
		fmt.Fprintln(os.Stderr, "fake tool failure")
		return 1
	case ModeHang:
		_ = out.Sync()
		time.Sleep(time.Hour)
		return 0
	}

	for i := 0; i < len(rest); i++ {
		if rest[i] == "--include" && i+1 < len(rest) {
			i++
			data, err := os.ReadFile(rest[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			_, _ = out.Write(data)
		}
	}

	for _, arg := range rest {
		if arg != "-" {
			continue
		}
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			fmt.Fprintf(out, "file: %s\n", sc.Text())
		}
		if err := sc.Err(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	return 0
}
