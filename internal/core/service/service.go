// Package service composes the extractor pipeline: auth, metadata, format
// selection, download and file delivery behind one API used by the HTTP
// server and the CLI.
package service

import (
	"context"
	"errors"
	"os"

	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/guiyumin/mediagrab/internal/core/cookies"
	"github.com/guiyumin/mediagrab/internal/core/downloader"
	"github.com/guiyumin/mediagrab/internal/core/extractor"
	"github.com/guiyumin/mediagrab/internal/core/fault"
	"github.com/guiyumin/mediagrab/internal/core/runner"
	"github.com/guiyumin/mediagrab/internal/core/storage"
	"golang.org/x/sync/semaphore"
)

// Service is safe for concurrent use
type Service struct {
	runner   downloader.Runner
	auth     *cookies.Store
	store    *storage.Store
	fetcher  *extractor.Fetcher
	executor *downloader.Executor
	sem      *semaphore.Weighted
	limit    int64
}

// Option customizes a Service
type Option func(*Service)

// WithRunner replaces the yt-dlp runner built from the config
func WithRunner(r downloader.Runner) Option {
	return func(s *Service) { s.runner = r }
}

// WithAuth replaces the auth store built from the config
func WithAuth(a *cookies.Store) Option {
	return func(s *Service) { s.auth = a }
}

// New builds a service from cfg and creates the storage directory
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	store, err := storage.New(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := store.Ensure(); err != nil {
		return nil, err
	}

	limit := int64(cfg.Server.MaxConcurrent)
	if limit <= 0 {
		limit = config.DefaultMaxConcurrent
	}

	s := &Service{
		store: store,
		sem:   semaphore.NewWeighted(limit),
		limit: limit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = runner.New(cfg.Extractor)
	}
	if s.auth == nil {
		s.auth = cookies.FromConfig(cfg.Cookies)
	}

	s.fetcher = extractor.NewFetcher(s.runner, store.Root())
	s.executor = downloader.NewExecutor(s.runner, store.Root())
	return s, nil
}

// Platform returns the platform profile for id
func (s *Service) Platform(id string) (*extractor.Platform, error) {
	return extractor.Lookup(id)
}

// MaxConcurrent is the number of extractor processes allowed at once
func (s *Service) MaxConcurrent() int64 { return s.limit }

// Storage returns the storage root
func (s *Service) Storage() *storage.Store { return s.store }

func (s *Service) target(op, platformID, rawURL string) (*extractor.Platform, error) {
	p, err := extractor.Lookup(platformID)
	if err != nil {
		return nil, fault.Wrap(op, err)
	}
	if err := p.Validate(rawURL); err != nil {
		return nil, fault.Wrap(op, err)
	}
	return p, nil
}

// acquire blocks until a process slot is free or ctx ends
func (s *Service) acquire(ctx context.Context, op string) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		kind := fault.KindCanceled
		if errors.Is(err, context.DeadlineExceeded) {
			kind = fault.KindTimeout
		}
		return &fault.Error{Op: op, Kind: kind, Message: "gave up waiting for a free extractor slot", Err: err}
	}
	return nil
}

func (s *Service) release() { s.sem.Release(1) }

// FetchMetadata returns the normalized metadata for rawURL
func (s *Service) FetchMetadata(ctx context.Context, platformID, rawURL string) (*extractor.ContentInfo, error) {
	p, err := s.target("fetch metadata", platformID, rawURL)
	if err != nil {
		return nil, err
	}
	if err := s.acquire(ctx, "fetch metadata"); err != nil {
		return nil, err
	}
	defer s.release()

	return s.fetcher.GetContentInfo(ctx, p, rawURL, s.auth.Snapshot())
}

func (s *Service) request(platformID, rawURL, format, quality string) (downloader.Request, error) {
	p, err := s.target("download", platformID, rawURL)
	if err != nil {
		return downloader.Request{}, err
	}
	return downloader.Request{
		URL:      rawURL,
		Platform: p,
		Format:   format,
		Quality:  quality,
		Auth:     s.auth.Snapshot(),
	}, nil
}

// Download runs a download to completion. Empty format and quality use the
// platform defaults.
func (s *Service) Download(ctx context.Context, platformID, rawURL, format, quality string) (*downloader.Result, error) {
	req, err := s.request(platformID, rawURL, format, quality)
	if err != nil {
		return nil, err
	}
	if err := s.acquire(ctx, "download"); err != nil {
		return nil, err
	}
	defer s.release()

	return s.executor.Download(ctx, req)
}

// StartDownload launches a streaming download. The process slot is held
// until the task finishes.
func (s *Service) StartDownload(ctx context.Context, platformID, rawURL, format, quality string) (*downloader.Task, error) {
	req, err := s.request(platformID, rawURL, format, quality)
	if err != nil {
		return nil, err
	}
	if err := s.acquire(ctx, "download"); err != nil {
		return nil, err
	}

	task, err := s.executor.Start(ctx, req)
	if err != nil {
		s.release()
		return nil, err
	}
	go func() {
		<-task.Done()
		s.release()
	}()
	return task, nil
}

// SetAuthMode replaces the auth mode. It returns false and keeps the
// current mode when m is invalid.
func (s *Service) SetAuthMode(m cookies.Mode) bool { return s.auth.Set(m) }

// SetBrowser switches to cookies from the named browser
func (s *Service) SetBrowser(name string) bool { return s.auth.SetBrowser(name) }

// AuthMode returns the current auth mode
func (s *Service) AuthMode() cookies.Mode { return s.auth.Snapshot() }

// AuthStatus reports the current auth mode
func (s *Service) AuthStatus() cookies.Status { return s.auth.Status() }

// AllowedBrowsers lists the browser names SetBrowser accepts
func (s *Service) AllowedBrowsers() []string { return s.auth.Allowed() }

// ResolveFile maps a client-supplied file name to a path inside storage
func (s *Service) ResolveFile(name string) (string, error) {
	return s.store.Locate(name)
}

// OpenFile opens a stored artifact for streaming
func (s *Service) OpenFile(name string) (*os.File, os.FileInfo, error) {
	return s.store.Open(name)
}
