package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/guiyumin/mediagrab/internal/core/cookies"
	"github.com/guiyumin/mediagrab/internal/core/fault"
	"github.com/guiyumin/mediagrab/internal/core/runner"
)

const opFetch = "fetch metadata"

// Runner runs a buffered extractor invocation
type Runner interface {
	Run(ctx context.Context, inv runner.Invocation) (*runner.Result, error)
}

// Fetcher retrieves and normalizes metadata via `yt-dlp --dump-json`
type Fetcher struct {
	runner Runner
	dir    string
}

// NewFetcher creates a fetcher that runs r in dir
func NewFetcher(r Runner, dir string) *Fetcher {
	return &Fetcher{runner: r, dir: dir}
}

// MetadataArgs builds the argument vector for a metadata dump
func MetadataArgs(rawURL string, mode cookies.Mode) []string {
	args := mode.Args()
	return append(args, "--dump-json", "--no-playlist", "--no-warnings", rawURL)
}

// GetContentInfo fetches metadata for rawURL on platform p. A non-zero exit
// keeps the runner's error kind; output that is not JSON is a parse error.
func (f *Fetcher) GetContentInfo(ctx context.Context, p *Platform, rawURL string, mode cookies.Mode) (*ContentInfo, error) {
	res, err := f.runner.Run(ctx, runner.Invocation{
		Args: MetadataArgs(rawURL, mode),
		Dir:  f.dir,
	})
	if err != nil {
		return nil, fault.Wrap(opFetch, err)
	}

	var raw rawInfo
	if err := json.Unmarshal(bytes.TrimSpace(res.Stdout), &raw); err != nil {
		return nil, &fault.Error{
			Op:      opFetch,
			Kind:    fault.KindParse,
			Message: fmt.Sprintf("unexpected extractor output: %v", err),
			Err:     err,
		}
	}

	info := p.contentInfo(&raw, rawURL)
	return &info, nil
}
