package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/guiyumin/mediagrab/internal/core/fault"
)

// waitDelay bounds how long Wait blocks on I/O after the process is killed.
const waitDelay = 5 * time.Second

// Invocation is one run of the extractor
type Invocation struct {
	Args []string
	Dir  string
}

// Result is the captured outcome of a completed run
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
}

// Runner launches the external extractor as a child process.
type Runner struct {
	// Name is used in error messages (default: base name of Binary)
	Name string

	Binary   string
	BaseArgs []string

	// Env is appended to the parent environment
	Env []string

	Timeout time.Duration
}

// New creates a Runner from extractor settings
func New(cfg config.ExtractorConfig) *Runner {
	binary := cfg.Binary
	if binary == "" {
		binary = config.DefaultBinary
	}
	name := filepath.Base(binary)
	if i := slices.Index(cfg.Args, "-m"); i >= 0 && i+1 < len(cfg.Args) {
		name = cfg.Args[i+1]
	}
	return &Runner{
		Name:     name,
		Binary:   binary,
		BaseArgs: slices.Clone(cfg.Args),
		Timeout:  cfg.Timeout,
	}
}

func (r *Runner) name() string {
	if r.Name != "" {
		return r.Name
	}
	return filepath.Base(r.Binary)
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return config.DefaultTimeout
}

func (r *Runner) command(ctx context.Context, inv Invocation) *exec.Cmd {
	args := append(slices.Clone(r.BaseArgs), inv.Args...)

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = inv.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.WaitDelay = waitDelay

	log.Printf("[runner] %s %s", r.Binary, strings.Join(args, " "))
	return cmd
}

// Run executes the extractor to completion and returns its buffered output.
// The run is killed once the configured timeout elapses.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	cmd := r.command(ctx, inv)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, r.spawnError(err)
	}

	err := cmd.Wait()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Elapsed:  time.Since(start),
	}
	log.Printf("[runner] %s exited with code %d in %s", r.name(), res.ExitCode, res.Elapsed.Round(time.Millisecond))

	if err := r.exitError(ctx, err, res.Stderr); err != nil {
		return nil, err
	}
	return res, nil
}

// Start launches the extractor and returns immediately. Stdout of the
// returned Process yields output as it is produced.
func (r *Runner) Start(ctx context.Context, inv Invocation) (*Process, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())

	cmd := r.command(ctx, inv)
	pr, pw := io.Pipe()
	p := &Process{
		stdout: pr,
		done:   make(chan struct{}),
	}
	cmd.Stdout = pw
	cmd.Stderr = &p.stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		cancel()
		pw.Close()
		return nil, r.spawnError(err)
	}

	go func() {
		defer close(p.done)
		defer cancel()

		err := cmd.Wait()
		pw.Close()

		res := &Result{
			Stderr:   p.stderr.String(),
			ExitCode: cmd.ProcessState.ExitCode(),
			Elapsed:  time.Since(start),
		}
		log.Printf("[runner] %s exited with code %d in %s", r.name(), res.ExitCode, res.Elapsed.Round(time.Millisecond))

		if p.err = r.exitError(ctx, err, res.Stderr); p.err == nil {
			p.result = res
		}
	}()

	return p, nil
}

func (r *Runner) spawnError(err error) error {
	return &fault.Error{
		Kind:    fault.KindSpawn,
		Message: fmt.Sprintf("failed to start %s: %v", r.name(), err),
		Err:     err,
	}
}

func (r *Runner) exitError(ctx context.Context, err error, stderr string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &fault.Error{
			Kind:    fault.KindTimeout,
			Message: fmt.Sprintf("%s timed out after %s", r.name(), r.timeout()),
			Err:     ctx.Err(),
		}
	case errors.Is(ctx.Err(), context.Canceled):
		return &fault.Error{
			Kind:    fault.KindCanceled,
			Message: fmt.Sprintf("%s was canceled", r.name()),
			Err:     ctx.Err(),
		}
	}

	msg := strings.TrimSpace(stderr)
	var exitErr *exec.ExitError
	if msg == "" && errors.As(err, &exitErr) {
		msg = fmt.Sprintf("%s exited with code %d", r.name(), exitErr.ExitCode())
	}
	if msg == "" {
		msg = err.Error()
	}
	return &fault.Error{Kind: fault.KindToolExecution, Message: msg, Err: err}
}

// Process is a running extractor started by Runner.Start.
type Process struct {
	stdout *io.PipeReader
	stderr bytes.Buffer

	done   chan struct{}
	result *Result
	err    error
}

// Stdout streams the process output until it exits.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Wait discards any unread output, then blocks until the process exits.
// Callers must call Wait to release the process.
func (p *Process) Wait() (*Result, error) {
	_, _ = io.Copy(io.Discard, p.stdout)
	<-p.done
	p.stdout.Close()
	return p.result, p.err
}
