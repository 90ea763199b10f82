package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/guiyumin/mediagrab/internal/core/extractor"
	"github.com/guiyumin/mediagrab/internal/core/service"
	"github.com/guiyumin/mediagrab/internal/core/version"
	"github.com/spf13/cobra"
)

var (
	platformFlag string
	configFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "mediagrab [url]",
	Short: "Fetch media info and download from YouTube, Instagram and Pinterest via yt-dlp",
	Long: `mediagrab drives yt-dlp to inspect and download media.

Examples:
  mediagrab https://youtu.be/dQw4w9WgXcQ            # show title, channel and formats
  mediagrab download https://youtu.be/dQw4w9WgXcQ -q 1080p
  mediagrab download https://youtu.be/dQw4w9WgXcQ -f mp3
  mediagrab serve                                  # start the HTTP API`,
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runInfo(cmd.Context(), args[0])
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&platformFlag, "platform", "", "platform to use (youtube, instagram, pinterest); detected from the URL by default")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default: ~/.config/mediagrab/config.yml)")
}

// Execute runs the root command. ctx is canceled on interrupt.
func Execute(ctx context.Context) error {
	registerCompletions()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads --config when given, otherwise the default location
func loadConfig() (*config.Config, error) {
	if configFlag != "" {
		return config.LoadFile(configFlag)
	}
	if !config.Exists() {
		warn("config file not found, using defaults. Run 'mediagrab init' to create one.")
	}
	return config.LoadOrDefault(), nil
}

// saveConfig writes cfg back to where loadConfig read it from
func saveConfig(cfg *config.Config) (string, error) {
	if configFlag != "" {
		return configFlag, config.SaveFile(configFlag, cfg)
	}
	return config.SavePath(), config.Save(cfg)
}

// resolvePlatform picks --platform, or matches the URL host
func resolvePlatform(rawURL string) (*extractor.Platform, error) {
	if platformFlag != "" {
		return extractor.Lookup(platformFlag)
	}
	if p := extractor.Match(rawURL); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("no supported platform matches %s (use --platform)", rawURL)
}

func newService() (*config.Config, *service.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	svc, err := service.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

func warn(msg string) {
	color.New(color.FgYellow).Fprintln(os.Stderr, msg)
}
