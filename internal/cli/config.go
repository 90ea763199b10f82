package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const supportedKeys = `Supported keys:
  output_dir              Storage directory for downloads
  format                  CLI default format (mp4, webm, mp3, ...)
  quality                 CLI default quality (1080p, 720p, ...)
  extractor.binary        yt-dlp executable
  extractor.timeout       Per-invocation limit (e.g. 5m, 90s)
  cookies.browser         Browser to read cookies from
  cookies.file            Netscape cookie file
  server.port             HTTP listen port
  server.max_concurrent   Max simultaneous yt-dlp processes
  server.api_key          API key (omit the value to type it hidden)
  server.rate_limit.requests  Requests per window per client (0 disables)
  server.rate_limit.window    Rate limit window (e.g. 15m)`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mediagrab configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println("Current configuration:")
		for _, key := range configKeys {
			value, _ := getConfigValue(cfg, key)
			if key == "server.api_key" && value != "" {
				value = maskSecret(value)
			}
			fmt.Printf("  %-28s %s\n", key+":", value)
		}
		fmt.Printf("  %-28s %s\n", "config:", configPath())
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configPath())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Set a configuration value",
	Long: "Set a configuration value in config.yml.\n\n" + supportedKeys + `

Examples:
  mediagrab config set output_dir ~/Videos
  mediagrab config set cookies.browser firefox
  mediagrab config set server.api_key`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		var value string
		switch {
		case len(args) == 2:
			value = args[1]
		case key == "server.api_key":
			secret, err := readSecret("API key: ")
			if err != nil {
				return err
			}
			value = secret
		default:
			return fmt.Errorf("missing value for %s", key)
		}

		return updateConfig(func(cfg *config.Config) error {
			return setConfigValue(cfg, key, value)
		}, "Set "+key)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  "Get a configuration value from config.yml.\n\n" + supportedKeys,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Long:  "Unset (clear) a configuration value in config.yml.\n\n" + supportedKeys,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		return updateConfig(func(cfg *config.Config) error {
			return unsetConfigValue(cfg, key)
		}, "Unset "+key)
	},
}

var configKeys = []string{
	"output_dir",
	"format",
	"quality",
	"extractor.binary",
	"extractor.timeout",
	"cookies.browser",
	"cookies.file",
	"server.port",
	"server.max_concurrent",
	"server.api_key",
	"server.rate_limit.requests",
	"server.rate_limit.window",
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

// updateConfig loads, mutates and saves the config file
func updateConfig(mutate func(*config.Config) error, done string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := mutate(cfg); err != nil {
		return err
	}
	path, err := saveConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("%s (%s)\n", done, path)
	return nil
}

func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	return config.SavePath()
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "output_dir":
		cfg.OutputDir = value
	case "format":
		cfg.Format = strings.ToLower(value)
	case "quality":
		cfg.Quality = value
	case "extractor.binary":
		cfg.Extractor.Binary = value
	case "extractor.timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Extractor.Timeout = d
	case "cookies.browser":
		name := strings.ToLower(value)
		if !containsFold(cfg.Cookies.AllowedBrowsers, name) {
			return fmt.Errorf("invalid browser. Supported: %s", strings.Join(cfg.Cookies.AllowedBrowsers, ", "))
		}
		cfg.Cookies.Browser = name
	case "cookies.file":
		cfg.Cookies.File = value
	case "server.port":
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port number: %s", value)
		}
		cfg.Server.Port = port
	case "server.max_concurrent":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid number: %s", value)
		}
		cfg.Server.MaxConcurrent = n
	case "server.api_key":
		cfg.Server.APIKey = value
	case "server.rate_limit.requests":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid number: %s", value)
		}
		cfg.Server.RateLimit.Requests = n
	case "server.rate_limit.window":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Server.RateLimit.Window = d
	default:
		return fmt.Errorf("unknown config key: %s\nRun 'mediagrab config set --help' to see supported keys", key)
	}
	return nil
}

func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "output_dir":
		return cfg.OutputDir, nil
	case "format":
		return cfg.Format, nil
	case "quality":
		return cfg.Quality, nil
	case "extractor.binary":
		return cfg.Extractor.Binary, nil
	case "extractor.timeout":
		return cfg.Extractor.Timeout.String(), nil
	case "cookies.browser":
		return cfg.Cookies.Browser, nil
	case "cookies.file":
		return cfg.Cookies.File, nil
	case "server.port":
		return strconv.Itoa(cfg.Server.Port), nil
	case "server.max_concurrent":
		return strconv.Itoa(cfg.Server.MaxConcurrent), nil
	case "server.api_key":
		return cfg.Server.APIKey, nil
	case "server.rate_limit.requests":
		return strconv.Itoa(cfg.Server.RateLimit.Requests), nil
	case "server.rate_limit.window":
		return cfg.Server.RateLimit.Window.String(), nil
	default:
		return "", fmt.Errorf("unknown config key: %s\nRun 'mediagrab config get --help' to see supported keys", key)
	}
}

// unsetConfigValue clears a key. Zero values are refilled with defaults on
// the next load.
func unsetConfigValue(cfg *config.Config, key string) error {
	switch key {
	case "output_dir":
		cfg.OutputDir = ""
	case "format":
		cfg.Format = ""
	case "quality":
		cfg.Quality = ""
	case "extractor.binary":
		cfg.Extractor.Binary = ""
	case "extractor.timeout":
		cfg.Extractor.Timeout = 0
	case "cookies.browser":
		cfg.Cookies.Browser = ""
	case "cookies.file":
		cfg.Cookies.File = ""
	case "server.port":
		cfg.Server.Port = 0
	case "server.max_concurrent":
		cfg.Server.MaxConcurrent = 0
	case "server.api_key":
		cfg.Server.APIKey = ""
	case "server.rate_limit.requests":
		cfg.Server.RateLimit.Requests = 0
	case "server.rate_limit.window":
		cfg.Server.RateLimit.Window = 0
	default:
		return fmt.Errorf("unknown config key: %s\nRun 'mediagrab config unset --help' to see supported keys", key)
	}
	return nil
}

// readSecret prompts without echo when stdin is a terminal
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; pass the value as an argument")
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
