package extractor

import (
	"context"
	"testing"

	"github.com/guiyumin/mediagrab/internal/core/cookies"
	"github.com/guiyumin/mediagrab/internal/core/fault"
	"github.com/guiyumin/mediagrab/internal/core/runner"
	"github.com/guiyumin/mediagrab/internal/core/runner/runnertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) { runnertest.Main(m) }

// fakeRunner returns a canned result and records the invocation
type fakeRunner struct {
	stdout string
	err    error
	got    runner.Invocation
}

func (f *fakeRunner) Run(_ context.Context, inv runner.Invocation) (*runner.Result, error) {
	f.got = inv
	if f.err != nil {
		return nil, f.err
	}
	return &runner.Result{Stdout: []byte(f.stdout)}, nil
}

const sampleVideoJSON = `{"id":"abc","title":"T","duration":125,"formats":[` +
	`{"ext":"mp4","vcodec":"h264","height":720,"format_id":"1"},` +
	`{"ext":"m4a","acodec":"aac","abr":128,"format_id":"2"}]}`

func TestGetContentInfoVideo(t *testing.T) {
	fr := &fakeRunner{stdout: sampleVideoJSON + "\n"}
	f := NewFetcher(fr, "/downloads")

	info, err := f.GetContentInfo(context.Background(), YouTube, "https://youtu.be/abc", cookies.None())
	require.NoError(t, err)

	assert.Equal(t, "abc", info.ID)
	assert.Equal(t, "T", info.Title)
	assert.Equal(t, MediaTypeVideo, info.ContentType)
	assert.Equal(t, "2:05", info.DurationFormatted)
	require.Len(t, info.Formats.Video, 1)
	assert.Equal(t, "720p", info.Formats.Video[0].Quality)
	require.Len(t, info.Formats.Audio, 1)
	assert.Equal(t, "128kbps", info.Formats.Audio[0].Quality)
	assert.Equal(t, "youtube", info.Platform)
	assert.Equal(t, "Unknown Channel", info.Channel)

	assert.Equal(t, "/downloads", fr.got.Dir)
	assert.Equal(t, []string{"--dump-json", "--no-playlist", "--no-warnings", "https://youtu.be/abc"}, fr.got.Args)
}

func TestGetContentInfoAuthArgsFirst(t *testing.T) {
	fr := &fakeRunner{stdout: sampleVideoJSON}
	f := NewFetcher(fr, t.TempDir())

	_, err := f.GetContentInfo(context.Background(), YouTube, "https://youtu.be/abc", cookies.Browser("firefox"))
	require.NoError(t, err)
	assert.Equal(t, []string{"--cookies-from-browser", "firefox", "--dump-json", "--no-playlist", "--no-warnings", "https://youtu.be/abc"}, fr.got.Args)
}

func TestGetContentInfoImage(t *testing.T) {
	longDescription := ""
	for i := 0; i < 60; i++ {
		longDescription += "0123456789"
	}
	fr := &fakeRunner{stdout: `{"id":"p1","description":"` + longDescription + `","uploader":"someone","channel":"chan","formats":[{"ext":"jpg","format_id":"0"}]}`}

	info, err := NewFetcher(fr, "").GetContentInfo(context.Background(), Instagram, "https://instagram.com/p/p1", cookies.None())
	require.NoError(t, err)

	assert.Equal(t, MediaTypeImage, info.ContentType)
	assert.Empty(t, info.DurationFormatted)
	assert.Equal(t, []rune(longDescription)[:100], []rune(info.Title))
	assert.Len(t, []rune(info.Description), 500)
	assert.Equal(t, "someone", info.Channel, "instagram prefers uploader")
	require.Len(t, info.Formats.Image, 1)
	assert.Equal(t, "jpg", info.Formats.Image[0].Ext)
}

func TestGetContentInfoPlaceholders(t *testing.T) {
	fr := &fakeRunner{stdout: `{"id":"p2"}`}

	info, err := NewFetcher(fr, "").GetContentInfo(context.Background(), Pinterest, "https://pin.it/p2", cookies.None())
	require.NoError(t, err)

	assert.Equal(t, "Pinterest Pin", info.Title)
	assert.Equal(t, "Pinterest User", info.Channel)
	assert.Empty(t, info.Formats.Video)
	require.Len(t, info.Formats.Image, 1)
	assert.Equal(t, "Original", info.Formats.Image[0].Quality)
}

func TestGetContentInfoParseError(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
	}{
		{"empty output", ""},
		{"garbled output", `{"id": "abc", "title":`},
		{"not json", "[download] Destination: x.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := NewFetcher(&fakeRunner{stdout: tt.stdout}, "").GetContentInfo(context.Background(), YouTube, "https://youtu.be/x", cookies.None())
			assert.Nil(t, info)
			assert.Equal(t, fault.KindParse, fault.KindOf(err))
		})
	}
}

func TestGetContentInfoToolError(t *testing.T) {
	r := runnertest.New(t, runnertest.Script{Stderr: "ERROR: Private video", Exit: 1})

	info, err := NewFetcher(r, t.TempDir()).GetContentInfo(context.Background(), YouTube, "https://youtu.be/x", cookies.None())
	assert.Nil(t, info)
	assert.Equal(t, fault.KindToolExecution, fault.KindOf(err))
	assert.Contains(t, err.Error(), "Private video")
	assert.Contains(t, err.Error(), "fetch metadata")
}

func TestGetContentInfoAgainstProcess(t *testing.T) {
	r := runnertest.New(t, runnertest.Script{Stdout: sampleVideoJSON})

	info, err := NewFetcher(r, t.TempDir()).GetContentInfo(context.Background(), YouTube, "https://youtu.be/abc", cookies.None())
	require.NoError(t, err)
	assert.Equal(t, "abc", info.ID)
}
