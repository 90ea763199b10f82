// Package runnertest provides a scripted stand-in for yt-dlp. The test binary
// re-executes itself as the child process, so tests exercise real process
// spawning, pipes, exit codes and timeouts.
//
// Use it from TestMain:
//
//	func TestMain(m *testing.M) { runnertest.Main(m) }
package runnertest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/guiyumin/mediagrab/internal/core/runner"
)

const envScript = "MEDIAGRAB_FAKE_TOOL"

// Title replaces the %(title) placeholder in output templates.
const Title = "Sample Title"

// File is written next to the output template, e.g. Suffix "f137.mp4" produces
// "Sample Title-<marker>.f137.mp4".
type File struct {
	Suffix string `json:"suffix"`
	Size   int    `json:"size"`
}

// Script describes what the fake tool does when invoked.
type Script struct {
	Stdout string        `json:"stdout,omitempty"`
	Stderr string        `json:"stderr,omitempty"`
	Exit   int           `json:"exit,omitempty"`
	Lines  []string      `json:"lines,omitempty"`
	Delay  time.Duration `json:"delay,omitempty"`
	Sleep  time.Duration `json:"sleep,omitempty"`
	Files  []File        `json:"files,omitempty"`

	// Title overrides the default Title in written file names
	Title string `json:"title,omitempty"`

	// ArgsFile receives the argument vector as JSON
	ArgsFile string `json:"args_file,omitempty"`
}

// Main runs the fake tool when the process was launched by New, and the
// test suite otherwise.
func Main(m *testing.M) {
	if raw := os.Getenv(envScript); raw != "" {
		os.Exit(run(raw, os.Args[1:]))
	}
	os.Exit(m.Run())
}

// New returns a Runner that launches the fake tool with script s.
func New(t testing.TB, s Script) *runner.Runner {
	t.Helper()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal script: %v", err)
	}
	return &runner.Runner{
		Name:    "yt-dlp",
		Binary:  os.Args[0],
		Env:     []string{envScript + "=" + string(data)},
		Timeout: 20 * time.Second,
	}
}

// ReadArgs returns the argument vector recorded at path.
func ReadArgs(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	var args []string
	if err := json.Unmarshal(data, &args); err != nil {
		t.Fatalf("decode recorded args: %v", err)
	}
	return args
}

func run(raw string, args []string) int {
	var s Script
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		fmt.Fprintf(os.Stderr, "bad script: %v", err)
		return 2
	}

	if s.ArgsFile != "" {
		data, _ := json.Marshal(args)
		if err := os.WriteFile(s.ArgsFile, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "record args: %v", err)
			return 2
		}
	}

	for _, line := range s.Lines {
		fmt.Fprintln(os.Stdout, line)
		if s.Delay > 0 {
			time.Sleep(s.Delay)
		}
	}
	fmt.Fprint(os.Stdout, s.Stdout)
	fmt.Fprint(os.Stderr, s.Stderr)

	if template := outputTemplate(args); template != "" {
		for _, f := range s.Files {
			title := Title
			if s.Title != "" {
				title = s.Title
			}
			name := strings.ReplaceAll(template, "%(title).50s", title)
			name = strings.ReplaceAll(name, "%(ext)s", f.Suffix)
			if err := os.WriteFile(name, make([]byte, f.Size), 0644); err != nil {
				fmt.Fprintf(os.Stderr, "write %s: %v", name, err)
				return 2
			}
		}
	}

	if s.Sleep > 0 {
		time.Sleep(s.Sleep)
	}
	return s.Exit
}

func outputTemplate(args []string) string {
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
