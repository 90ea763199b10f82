package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/guiyumin/mediagrab/internal/core/runner/runnertest"
	"github.com/guiyumin/mediagrab/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) { runnertest.Main(m) }

const videoJSON = `{"id":"abc","title":"Clip","duration":90,"channel":"Chan","formats":[` +
	`{"format_id":"137","ext":"mp4","vcodec":"avc1","height":1080,"filesize":1000},` +
	`{"format_id":"140","ext":"m4a","vcodec":"none","acodec":"mp4a","abr":129.5}]}`

type testServer struct {
	*Server
	cfg *config.Config
}

func newTestServer(t *testing.T, script runnertest.Script, tweak ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Server.RateLimit.Requests = 0
	for _, fn := range tweak {
		fn(cfg)
	}

	svc, err := service.New(cfg, service.WithRunner(runnertest.New(t, script)))
	require.NoError(t, err)

	s := NewServer(cfg, svc)
	s.jobQueue.Start()
	t.Cleanup(s.jobQueue.Stop)
	return &testServer{Server: s, cfg: cfg}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{})

	w := ts.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Status    string   `json:"status"`
		Platforms []string `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, "ok", data.Status)
	assert.Equal(t, []string{"instagram", "pinterest", "youtube"}, data.Platforms)
}

func TestInfo(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{Stdout: videoJSON})

	w := ts.do(t, http.MethodPost, "/api/youtube/info", InfoRequest{URL: "https://www.youtube.com/watch?v=abc"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var info struct {
		Title             string `json:"title"`
		DurationFormatted string `json:"durationFormatted"`
		ContentType       string `json:"contentType"`
		Formats           struct {
			Video []struct {
				Quality string `json:"quality"`
			} `json:"video"`
			Audio []struct {
				Quality string `json:"quality"`
			} `json:"audio"`
		} `json:"formats"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &info))
	assert.Equal(t, "Clip", info.Title)
	assert.Equal(t, "1:30", info.DurationFormatted)
	assert.Equal(t, "video", info.ContentType)
	require.Len(t, info.Formats.Video, 1)
	assert.Equal(t, "1080p", info.Formats.Video[0].Quality)
	require.Len(t, info.Formats.Audio, 1)
	assert.Equal(t, "130kbps", info.Formats.Audio[0].Quality)
}

func TestInfoErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  runnertest.Script
		path    string
		body    any
		status  int
		message string
	}{
		{
			name:    "missing url",
			path:    "/api/youtube/info",
			body:    InfoRequest{},
			status:  http.StatusBadRequest,
			message: "URL is required",
		},
		{
			name:    "wrong platform url",
			path:    "/api/pinterest/info",
			body:    InfoRequest{URL: "https://www.youtube.com/watch?v=abc"},
			status:  http.StatusBadRequest,
			message: "invalid Pinterest URL",
		},
		{
			name:    "unknown platform",
			path:    "/api/vimeo/info",
			body:    InfoRequest{URL: "https://vimeo.com/1"},
			status:  http.StatusNotFound,
			message: "unsupported platform: vimeo",
		},
		{
			name:    "age restricted",
			script:  runnertest.Script{Stderr: "ERROR: [youtube] abc: Sign in to confirm your age", Exit: 1},
			path:    "/api/youtube/info",
			body:    InfoRequest{URL: "https://youtu.be/abc"},
			status:  http.StatusInternalServerError,
			message: msgAgeRestricted,
		},
		{
			name:    "private post",
			script:  runnertest.Script{Stderr: "ERROR: This account is private", Exit: 1},
			path:    "/api/instagram/info",
			body:    InfoRequest{URL: "https://www.instagram.com/p/xyz/"},
			status:  http.StatusInternalServerError,
			message: msgPrivatePost,
		},
		{
			name:    "bad json output",
			script:  runnertest.Script{Stdout: "not json"},
			path:    "/api/youtube/info",
			body:    InfoRequest{URL: "https://youtu.be/abc"},
			status:  http.StatusInternalServerError,
			message: "unexpected extractor output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.script)
			w := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			env := decode(t, w)
			assert.Equal(t, tt.status, env.Code)
			assert.Contains(t, env.Message, tt.message)
		})
	}
}

func TestAgeRestrictedFlag(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{Stderr: "ERROR: age-restricted video", Exit: 1})

	w := ts.do(t, http.MethodPost, "/api/youtube/info", InfoRequest{URL: "https://youtu.be/abc"})
	var data struct {
		IsAgeRestricted bool `json:"isAgeRestricted"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.True(t, data.IsAgeRestricted)
}

func TestDownloadInfoAndFile(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{
		Files: []runnertest.File{{Suffix: "mp4", Size: 2048}},
	})

	w := ts.do(t, http.MethodPost, "/api/youtube/download-info", DownloadRequest{
		URL:     "https://youtu.be/abc",
		Format:  "mp4",
		Quality: "1080p",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var fi FileInfo
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &fi))
	assert.Equal(t, int64(2048), fi.FileSize)
	assert.Equal(t, "1080p", fi.Quality)
	assert.Contains(t, fi.FileName, runnertest.Title)
	assert.Equal(t, fileURL("youtube", fi.FileName), fi.DownloadURL)

	w = ts.do(t, http.MethodGet, fi.DownloadURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Body.Bytes(), 2048)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
}

func TestDownloadURLWithPercentInName(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{
		Title: "100% Real",
		Files: []runnertest.File{{Suffix: "mp4", Size: 512}},
	})

	w := ts.do(t, http.MethodPost, "/api/youtube/download-info", DownloadRequest{URL: "https://youtu.be/abc", Format: "mp4"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var fi FileInfo
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &fi))
	require.True(t, strings.HasPrefix(fi.FileName, "100% Real-"), fi.FileName)
	assert.Contains(t, fi.DownloadURL, "100%25%20Real-")

	w = ts.do(t, http.MethodGet, fi.DownloadURL, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, w.Body.Bytes(), 512)
}

func TestDownloadStreamsFile(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{
		Files: []runnertest.File{{Suffix: "jpg", Size: 300}},
	})

	w := ts.do(t, http.MethodPost, "/api/pinterest/download", DownloadRequest{URL: "https://www.pinterest.com/pin/123/"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, w.Body.Bytes(), 300)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".jpg")
}

func TestFileRouteRejectsTraversal(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{})

	w := ts.do(t, http.MethodGet, "/api/youtube/file/%2E%2E%2Fsecret.txt", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access denied", decode(t, w).Message)

	// a doubly encoded name is decoded once and is just a missing file
	w = ts.do(t, http.MethodGet, "/api/youtube/file/%252E%252E%252Fsecret.txt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/youtube/file/missing.mp4", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIKey(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{}, func(c *config.Config) { c.Server.APIKey = "secret" })

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/auth/status", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/auth/status", nil, "X-API-Key", "secret").Code)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{}, func(c *config.Config) {
		c.Server.RateLimit.Requests = 2
		c.Server.RateLimit.Window = time.Hour
	})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/health", nil).Code)

	w := ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 429, decode(t, w).Code)
}

func TestAuthRoutes(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{})

	w := ts.do(t, http.MethodPost, "/api/auth/browser", BrowserRequest{Browser: "netscape"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Message, "chrome")

	w = ts.do(t, http.MethodPost, "/api/auth/browser", BrowserRequest{Browser: "Firefox"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/auth/status", nil)
	var st struct {
		Configured bool   `json:"configured"`
		Mode       string `json:"mode"`
		Detail     string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &st))
	assert.True(t, st.Configured)
	assert.Equal(t, "browser", st.Mode)
	assert.Equal(t, "firefox", st.Detail)

	w = ts.do(t, http.MethodPost, "/api/auth/mode", map[string]string{"kind": "cookie_file", "cookie_file": "/does/not/exist"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/mode", map[string]string{"kind": "none"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "none", decode(t, ts.do(t, http.MethodGet, "/api/auth/status", nil)).Message)
}

func TestJobLifecycle(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{
		Lines: []string{"[download]  30.0%", "[download] 100%"},
		Files: []runnertest.File{{Suffix: "mp3", Size: 99}},
	})

	w := ts.do(t, http.MethodPost, "/api/jobs", JobSpec{Platform: "youtube", URL: "https://youtu.be/abc", Format: "mp3"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	require.NotEmpty(t, created.ID)

	var job Job
	require.Eventually(t, func() bool {
		w := ts.do(t, http.MethodGet, "/api/jobs/"+created.ID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		job = Job{}
		if err := json.Unmarshal(decode(t, w).Data, &job); err != nil {
			return false
		}
		return job.Status == JobStatusCompleted || job.Status == JobStatusFailed
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, JobStatusCompleted, job.Status, job.Error)
	assert.Equal(t, float64(100), job.Progress)
	assert.Equal(t, int64(99), job.FileSize)
	assert.Equal(t, fileURL("youtube", job.FileName), job.DownloadURL)

	w = ts.do(t, http.MethodDelete, "/api/jobs/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "job removed", decode(t, w).Message)

	w = ts.do(t, http.MethodGet, "/api/jobs/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateJobValidation(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{})

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/jobs", JobSpec{URL: "https://youtu.be/abc"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/jobs", JobSpec{Platform: "youtube", URL: "https://pin.it/x"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/jobs", JobSpec{Platform: "vimeo", URL: "https://vimeo.com/1"}).Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, runnertest.Script{})
	w := ts.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
