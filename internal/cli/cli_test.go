package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{key: "output_dir", value: "/tmp/media", want: "/tmp/media"},
		{key: "format", value: "MP3", want: "mp3"},
		{key: "quality", value: "1080p", want: "1080p"},
		{key: "extractor.binary", value: "/usr/local/bin/yt-dlp", want: "/usr/local/bin/yt-dlp"},
		{key: "extractor.timeout", value: "90s", want: "1m30s"},
		{key: "cookies.browser", value: "Firefox", want: "firefox"},
		{key: "cookies.file", value: "/tmp/cookies.txt", want: "/tmp/cookies.txt"},
		{key: "server.port", value: "9000", want: "9000"},
		{key: "server.max_concurrent", value: "5", want: "5"},
		{key: "server.api_key", value: "secret", want: "secret"},
		{key: "server.rate_limit.requests", value: "0", want: "0"},
		{key: "server.rate_limit.window", value: "1h", want: "1h0m0s"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := config.DefaultConfig()
			require.NoError(t, setConfigValue(cfg, tt.key, tt.value))

			got, err := getConfigValue(cfg, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.NoError(t, unsetConfigValue(cfg, tt.key))
		})
	}
}

func TestConfigKeysAreComplete(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, key := range configKeys {
		_, err := getConfigValue(cfg, key)
		assert.NoError(t, err, key)
	}
}

func TestConfigValueErrors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"server.port", "abc"},
		{"server.port", "70000"},
		{"server.max_concurrent", "0"},
		{"extractor.timeout", "soon"},
		{"server.rate_limit.window", "-1m"},
		{"cookies.browser", "netscape"},
		{"language", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			assert.Error(t, setConfigValue(config.DefaultConfig(), tt.key, tt.value))
		})
	}

	_, err := getConfigValue(config.DefaultConfig(), "language")
	assert.Error(t, err)
	assert.Error(t, unsetConfigValue(config.DefaultConfig(), "language"))
}

func TestUnsetRestoresDefaultsOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg := config.DefaultConfig()
	cfg.Extractor.Timeout = time.Minute
	require.NoError(t, unsetConfigValue(cfg, "extractor.timeout"))
	require.NoError(t, config.SaveFile(path, cfg))

	loaded, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTimeout, loaded.Extractor.Timeout)
}

func TestResolvePlatform(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "youtube host", url: "https://www.youtube.com/watch?v=abc", want: "youtube"},
		{name: "short host", url: "https://youtu.be/abc", want: "youtube"},
		{name: "pinterest", url: "https://pin.it/xyz", want: "pinterest"},
		{name: "flag wins", flag: "instagram", url: "https://example.com/p/1", want: "instagram"},
		{name: "unknown host", url: "https://example.com/video", wantErr: true},
		{name: "unknown flag", flag: "myspace", url: "https://youtu.be/abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platformFlag = tt.flag
			t.Cleanup(func() { platformFlag = "" })

			p, err := resolvePlatform(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.ID)
		})
	}
}

func TestSaveConfigHonoursFlag(t *testing.T) {
	configFlag = filepath.Join(t.TempDir(), "custom.yml")
	t.Cleanup(func() { configFlag = "" })

	cfg := config.DefaultConfig()
	cfg.Quality = "1080p"
	path, err := saveConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, configFlag, path)

	loaded, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "1080p", loaded.Quality)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))

	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "se**et", maskSecret("secret"))

	assert.Equal(t, []string{"mp3", "mp4"}, filterPrefix([]string{"mp3", "mp4", "webm"}, "MP"))
	assert.Nil(t, filterPrefix([]string{"webm"}, "x"))

	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "12 B", formatSize(12))
}
