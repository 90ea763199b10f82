package downloader

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/guiyumin/mediagrab/internal/core/cookies"
	"github.com/guiyumin/mediagrab/internal/core/extractor"
	"github.com/guiyumin/mediagrab/internal/core/fault"
	"github.com/guiyumin/mediagrab/internal/core/quality"
	"github.com/guiyumin/mediagrab/internal/core/runner"
)

const (
	opDownload = "download"

	// progressBuffer is how many unread events a Task holds before the
	// oldest is discarded
	progressBuffer = 64
)

// Runner runs the extractor either buffered or streaming
type Runner interface {
	Run(ctx context.Context, inv runner.Invocation) (*runner.Result, error)
	Start(ctx context.Context, inv runner.Invocation) (*runner.Process, error)
}

// Request is a single download. Auth is the mode snapshot taken for it.
type Request struct {
	URL      string
	Platform *extractor.Platform
	Format   string
	Quality  string
	Auth     cookies.Mode
}

// Result describes the resolved artifact on disk
type Result struct {
	Path     string `json:"path"`
	FileName string `json:"fileName"`
	Size     int64  `json:"fileSize"`
	Format   string `json:"format"`
	Quality  string `json:"quality"`
	Ext      string `json:"ext"`
	Marker   string `json:"marker"`
}

// Executor downloads into a storage directory and resolves the output file
type Executor struct {
	runner Runner
	dir    string
	parser Parser
}

// NewExecutor creates an executor writing to dir
func NewExecutor(r Runner, dir string) *Executor {
	return &Executor{runner: r, dir: dir, parser: LineParser{}}
}

// SetParser replaces the progress parser used by Start
func (e *Executor) SetParser(p Parser) {
	e.parser = p
}

// NewMarker returns a unique token embedded in every output file name
func NewMarker() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// OutputTemplate is the yt-dlp -o template for marker
func OutputTemplate(marker string) string {
	return "%(title).50s-" + marker + ".%(ext)s"
}

// DownloadArgs builds the argument vector for a download
func DownloadArgs(req Request, marker string, sel quality.Selection, streaming bool) []string {
	args := req.Auth.Args()
	args = append(args, "-o", OutputTemplate(marker), "--no-playlist", "--no-warnings")
	args = append(args, sel.Args()...)
	if streaming {
		args = append(args, "--newline", "--progress")
	}
	return append(args, req.URL)
}

type plan struct {
	req     Request
	marker  string
	sel     quality.Selection
	format  string
	quality string
}

func (e *Executor) plan(req Request) (plan, error) {
	if req.Platform == nil {
		return plan{}, fault.New(fault.KindInvalidInput, "platform is required")
	}
	if req.URL == "" {
		return plan{}, fault.New(fault.KindInvalidInput, "URL is required")
	}
	p := plan{
		req:     req,
		marker:  NewMarker(),
		format:  req.Format,
		quality: req.Quality,
	}
	if p.format == "" {
		p.format = req.Platform.DefaultFormat
	}
	if p.quality == "" {
		p.quality = req.Platform.DefaultQuality
	}
	p.sel = req.Platform.Resolve(p.format, p.quality)
	return p, nil
}

// Download runs yt-dlp to completion and returns the resolved artifact
func (e *Executor) Download(ctx context.Context, req Request) (*Result, error) {
	p, err := e.plan(req)
	if err != nil {
		return nil, fault.Wrap(opDownload, err)
	}

	inv := runner.Invocation{Args: DownloadArgs(req, p.marker, p.sel, false), Dir: e.dir}
	if _, err := e.runner.Run(ctx, inv); err != nil {
		return nil, fault.Wrap(opDownload, err)
	}
	return e.finish(p)
}

// Start launches a streaming download. Progress events arrive on the task's
// channel, which closes when the process exits.
func (e *Executor) Start(ctx context.Context, req Request) (*Task, error) {
	p, err := e.plan(req)
	if err != nil {
		return nil, fault.Wrap(opDownload, err)
	}

	inv := runner.Invocation{Args: DownloadArgs(req, p.marker, p.sel, true), Dir: e.dir}
	proc, err := e.runner.Start(ctx, inv)
	if err != nil {
		return nil, fault.Wrap(opDownload, err)
	}

	t := &Task{
		Marker:   p.marker,
		progress: make(chan Progress, progressBuffer),
		done:     make(chan struct{}),
	}
	go t.run(e, proc, p)
	return t, nil
}

func (e *Executor) finish(p plan) (*Result, error) {
	c, err := resolveArtifact(e.dir, p.marker, p.sel.Ext)
	if err != nil {
		return nil, fault.Wrap(opDownload, err)
	}

	path, err := filepath.Abs(filepath.Join(e.dir, c.name))
	if err != nil {
		return nil, fault.Wrap(opDownload, err)
	}
	log.Printf("[download] %s -> %s (%d bytes)", p.req.URL, c.name, c.size)

	return &Result{
		Path:     path,
		FileName: c.name,
		Size:     c.size,
		Format:   p.format,
		Quality:  p.quality,
		Ext:      c.ext(),
		Marker:   p.marker,
	}, nil
}

// Task is a running streaming download
type Task struct {
	Marker string

	progress chan Progress
	done     chan struct{}
	result   *Result
	err      error
}

// Progress yields strictly increasing percentages. When the buffer is full
// the oldest unread event makes room for the newest, so the final percentage
// is always delivered.
func (t *Task) Progress() <-chan Progress { return t.progress }

// Done is closed once the result is available
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the download finishes
func (t *Task) Wait() (*Result, error) {
	<-t.done
	return t.result, t.err
}

// publish never blocks. run is the only sender, so after one receive there
// is always room.
func (t *Task) publish(ev Progress) {
	select {
	case t.progress <- ev:
		return
	default:
	}
	select {
	case <-t.progress:
	default:
	}
	select {
	case t.progress <- ev:
	default:
	}
}

func (t *Task) run(e *Executor, proc *runner.Process, p plan) {
	defer close(t.done)

	for ev := range Monotonic(Parse(proc.Stdout(), e.parser)) {
		t.publish(ev)
	}

	_, err := proc.Wait()
	close(t.progress)
	if err != nil {
		t.err = fault.Wrap(opDownload, err)
		return
	}
	t.result, t.err = e.finish(p)
}
