package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "mediagrab"

	DefaultPort          = 3001
	DefaultMaxConcurrent = 3
	DefaultTimeout       = 300 * time.Second
	DefaultBinary        = "yt-dlp"
)

// DefaultBrowsers are the browser names yt-dlp can read cookies from.
var DefaultBrowsers = []string{"chrome", "firefox", "edge", "brave", "opera", "safari", "vivaldi"}

// ConfigDir returns the standard config directory for mediagrab.
// Windows: %APPDATA%\mediagrab\
// macOS/Linux: ~/.config/mediagrab/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/mediagrab/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// Storage root for downloaded artifacts
	OutputDir string `yaml:"output_dir,omitempty" env:"DOWNLOAD_DIR"`

	// Format used when a request names none (e.g., "mp4", "mp3")
	Format string `yaml:"format,omitempty" env:"DEFAULT_FORMAT"`

	// Quality used when a request names none (e.g., "1080p", "720p")
	Quality string `yaml:"quality,omitempty" env:"DEFAULT_QUALITY"`

	Extractor ExtractorConfig `yaml:"extractor,omitempty"`
	Cookies   CookiesConfig   `yaml:"cookies,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
}

// ExtractorConfig describes how to launch yt-dlp
type ExtractorConfig struct {
	// Binary is the executable to run (default: yt-dlp).
	// Set to "python" with Args ["-m", "yt_dlp"] for a pip install.
	Binary string `yaml:"binary,omitempty" env:"YTDLP_BINARY"`

	// Args are prepended to every invocation
	Args []string `yaml:"args,omitempty" env:"YTDLP_ARGS" env-separator:" "`

	// Timeout is the wall-clock limit per invocation (default: 5m)
	Timeout time.Duration `yaml:"timeout,omitempty" env:"YTDLP_TIMEOUT"`
}

// CookiesConfig selects the initial cookie source. Browser wins when both are set.
type CookiesConfig struct {
	Browser         string   `yaml:"browser,omitempty" env:"COOKIE_BROWSER"`
	File            string   `yaml:"file,omitempty" env:"COOKIES_FILE"`
	AllowedBrowsers []string `yaml:"allowed_browsers,omitempty" env:"COOKIE_ALLOWED_BROWSERS" env-separator:","`
}

// ServerConfig holds HTTP server settings for `mediagrab serve`
type ServerConfig struct {
	// Port is the HTTP listen port (default: 3001)
	Port int `yaml:"port,omitempty" env:"PORT"`

	// MaxConcurrent bounds simultaneous yt-dlp processes (default: 3)
	MaxConcurrent int `yaml:"max_concurrent,omitempty" env:"MAX_CONCURRENT"`

	// APIKey for authentication (optional, if set requests must include X-API-Key header)
	APIKey string `yaml:"api_key,omitempty" env:"API_KEY"`

	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig allows Requests per Window for each client address.
// Requests <= 0 disables limiting.
type RateLimitConfig struct {
	Requests int           `yaml:"requests,omitempty" env:"RATE_LIMIT_REQUESTS"`
	Window   time.Duration `yaml:"window,omitempty" env:"RATE_LIMIT_WINDOW"`
}

// DefaultDownloadDir returns the default download directory
// Windows: ~/Downloads/mediagrab
// macOS: ~/Downloads/mediagrab
// Linux: ~/downloads
func DefaultDownloadDir() string {
	// Docker: use the default container path (users mount their volume here)
	if IsRunningInDocker() {
		return "/home/mediagrab/downloads"
	}

	home, err := homedir.Dir()
	if err != nil {
		return "./downloads"
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return filepath.Join(home, "Downloads", AppDirName)
	default:
		return filepath.Join(home, "downloads")
	}
}

// IsRunningInDocker detects if we're running inside a Docker container
func IsRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") {
			return true
		}
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return false
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OutputDir: DefaultDownloadDir(),
		Format:    "mp4",
		Quality:   "720p",
		Extractor: ExtractorConfig{
			Binary:  DefaultBinary,
			Timeout: DefaultTimeout,
		},
		Cookies: CookiesConfig{
			AllowedBrowsers: append([]string(nil), DefaultBrowsers...),
		},
		Server: ServerConfig{
			Port:          DefaultPort,
			MaxConcurrent: DefaultMaxConcurrent,
			RateLimit: RateLimitConfig{
				Requests: 100,
				Window:   15 * time.Minute,
			},
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.Format == "" {
		c.Format = def.Format
	}
	if c.Quality == "" {
		c.Quality = def.Quality
	}
	if c.Extractor.Binary == "" {
		c.Extractor.Binary = def.Extractor.Binary
	}
	if c.Extractor.Timeout <= 0 {
		c.Extractor.Timeout = def.Extractor.Timeout
	}
	if len(c.Cookies.AllowedBrowsers) == 0 {
		c.Cookies.AllowedBrowsers = def.Cookies.AllowedBrowsers
	}
	if c.Server.Port <= 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.MaxConcurrent <= 0 {
		c.Server.MaxConcurrent = def.Server.MaxConcurrent
	}
	if c.Server.RateLimit.Window <= 0 {
		c.Server.RateLimit.Window = def.Server.RateLimit.Window
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/mediagrab/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a YAML config file, then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish layers environment variables over cfg, fills defaults and expands paths.
func finish(cfg *Config) error {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.applyDefaults()

	cfg.OutputDir = expandPath(cfg.OutputDir)
	cfg.Cookies.File = expandPath(cfg.Cookies.File)
	return nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// Both "~/" and "~\" prefixes are accepted so config files stay portable.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, `~\`) {
		path = "~/" + path[2:]
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return filepath.Clean(expanded)
}

// Save writes the config to ~/.config/mediagrab/config.yml
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveFile(configPath, cfg)
}

// SaveFile writes cfg to path with a header comment.
func SaveFile(configPath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# mediagrab configuration file\n# Run 'mediagrab init' to regenerate with defaults\n\n"
	content := header + string(data)

	return os.WriteFile(configPath, []byte(content), 0644)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults.
// Environment overrides apply either way.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err == nil {
		return cfg
	}
	cfg = DefaultConfig()
	_ = finish(cfg)
	return cfg
}
