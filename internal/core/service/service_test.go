package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/guiyumin/mediagrab/internal/core/cookies"
	"github.com/guiyumin/mediagrab/internal/core/fault"
	"github.com/guiyumin/mediagrab/internal/core/runner"
	"github.com/guiyumin/mediagrab/internal/core/runner/runnertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) { runnertest.Main(m) }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "downloads")
	cfg.Server.MaxConcurrent = 2
	return cfg
}

func TestNewCreatesStorage(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, WithRunner(runnertest.New(t, runnertest.Script{})))
	require.NoError(t, err)

	info, err := os.Stat(cfg.OutputDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, int64(2), s.MaxConcurrent())
}

func TestFetchMetadata(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args.json")
	r := runnertest.New(t, runnertest.Script{
		ArgsFile: argsFile,
		Stdout:   `{"id":"abc","title":"Hello","duration":61,"channel":"Chan","formats":[]}`,
	})
	s, err := New(testConfig(t), WithRunner(r))
	require.NoError(t, err)
	require.True(t, s.SetBrowser("Firefox"))

	info, err := s.FetchMetadata(context.Background(), "youtube", "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.Equal(t, "Hello", info.Title)
	assert.Equal(t, "1:01", info.DurationFormatted)
	assert.Equal(t, "Chan", info.Channel)

	args := runnertest.ReadArgs(t, argsFile)
	assert.Equal(t, []string{"--cookies-from-browser", "firefox"}, args[:2])
}

func TestRequestValidation(t *testing.T) {
	s, err := New(testConfig(t), WithRunner(runnertest.New(t, runnertest.Script{})))
	require.NoError(t, err)

	tests := []struct {
		name     string
		platform string
		url      string
	}{
		{name: "unknown platform", platform: "vimeo", url: "https://vimeo.com/1"},
		{name: "empty url", platform: "youtube", url: ""},
		{name: "wrong host", platform: "instagram", url: "https://youtube.com/watch?v=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.FetchMetadata(context.Background(), tt.platform, tt.url)
			assert.Equal(t, fault.KindInvalidInput, fault.KindOf(err))

			_, err = s.Download(context.Background(), tt.platform, tt.url, "", "")
			assert.Equal(t, fault.KindInvalidInput, fault.KindOf(err))
		})
	}
}

func TestDownloadAndResolveFile(t *testing.T) {
	r := runnertest.New(t, runnertest.Script{
		Files: []runnertest.File{{Suffix: "mp3", Size: 64}},
	})
	s, err := New(testConfig(t), WithRunner(r))
	require.NoError(t, err)

	res, err := s.Download(context.Background(), "youtube", "https://youtu.be/abc", "mp3", "")
	require.NoError(t, err)
	assert.Equal(t, "mp3", res.Ext)

	path, err := s.ResolveFile(res.FileName)
	require.NoError(t, err)
	assert.Equal(t, res.Path, path)

	f, info, err := s.OpenFile(res.FileName)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(64), info.Size())

	_, err = s.ResolveFile("../" + res.FileName)
	assert.Equal(t, fault.KindFileResolution, fault.KindOf(err))
}

func TestStartDownloadReleasesSlot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxConcurrent = 1
	r := runnertest.New(t, runnertest.Script{
		Lines: []string{"[download]  50.0%", "[download] 100%"},
		Files: []runnertest.File{{Suffix: "mp4", Size: 8}},
	})
	s, err := New(cfg, WithRunner(r))
	require.NoError(t, err)

	for range 2 {
		task, err := s.StartDownload(context.Background(), "youtube", "https://youtu.be/abc", "", "")
		require.NoError(t, err)
		_, err = task.Wait()
		require.NoError(t, err)
	}
}

// blockingRunner holds every Run call until release is closed
type blockingRunner struct {
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, _ runner.Invocation) (*runner.Result, error) {
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &runner.Result{Stdout: []byte(`{"id":"x","duration":1}`)}, nil
}

func (b *blockingRunner) Start(context.Context, runner.Invocation) (*runner.Process, error) {
	return nil, fault.New(fault.KindSpawn, "not supported")
}

func TestConcurrencyIsBounded(t *testing.T) {
	br := &blockingRunner{release: make(chan struct{})}
	s, err := New(testConfig(t), WithRunner(br))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.FetchMetadata(context.Background(), "youtube", "https://youtu.be/abc")
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return br.active.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), br.active.Load())

	close(br.release)
	wg.Wait()
	assert.Equal(t, int32(2), br.peak.Load())
}

func TestAcquireHonoursContext(t *testing.T) {
	br := &blockingRunner{release: make(chan struct{})}
	cfg := testConfig(t)
	cfg.Server.MaxConcurrent = 1
	s, err := New(cfg, WithRunner(br))
	require.NoError(t, err)

	go s.FetchMetadata(context.Background(), "youtube", "https://youtu.be/abc")
	require.Eventually(t, func() bool { return br.active.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.FetchMetadata(ctx, "youtube", "https://youtu.be/abc")
	assert.Equal(t, fault.KindTimeout, fault.KindOf(err))

	close(br.release)
}

func TestAuthMode(t *testing.T) {
	s, err := New(testConfig(t), WithRunner(runnertest.New(t, runnertest.Script{})))
	require.NoError(t, err)

	assert.False(t, s.AuthStatus().Configured)
	assert.False(t, s.SetBrowser("netscape"))
	assert.Equal(t, cookies.KindNone, s.AuthMode().Kind)

	cookieFile := filepath.Join(t.TempDir(), "cookies.txt")
	assert.False(t, s.SetAuthMode(cookies.CookieFile(cookieFile)))
	require.NoError(t, os.WriteFile(cookieFile, []byte("# Netscape HTTP Cookie File\n"), 0600))
	assert.True(t, s.SetAuthMode(cookies.CookieFile(cookieFile)))

	st := s.AuthStatus()
	assert.True(t, st.Configured)
	assert.Equal(t, cookies.KindCookieFile, st.Mode)
	assert.Contains(t, s.AllowedBrowsers(), "chrome")
}
