package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/guiyumin/mediagrab/internal/core/cookies"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Configure the cookie source passed to yt-dlp",
	Long: `Configure how yt-dlp authenticates. The choice is saved to the config
file and picked up by 'mediagrab download' and 'mediagrab serve'.

Examples:
  mediagrab auth browser firefox
  mediagrab auth cookie-file ~/cookies.txt
  mediagrab auth clear
  mediagrab auth status`,
}

var authBrowserCmd = &cobra.Command{
	Use:   "browser <name>",
	Short: "Read cookies from a local browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(cfg *config.Config) error {
			store := cookies.NewStore(cfg.Cookies.AllowedBrowsers, cookies.None())
			if !store.SetBrowser(args[0]) {
				return fmt.Errorf("invalid browser. Supported: %s", strings.Join(store.Allowed(), ", "))
			}
			cfg.Cookies.Browser = store.Snapshot().Browser
			cfg.Cookies.File = ""
			return nil
		}, "Using cookies from "+strings.ToLower(args[0]))
	},
}

var authCookieFileCmd = &cobra.Command{
	Use:   "cookie-file <path>",
	Short: "Read cookies from a Netscape cookie file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return fmt.Errorf("cookie file not found: %s", path)
		}
		return updateConfig(func(cfg *config.Config) error {
			cfg.Cookies.File = path
			cfg.Cookies.Browser = ""
			return nil
		}, "Using cookie file "+path)
	},
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Disable cookie authentication",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(cfg *config.Config) error {
			cfg.Cookies.Browser = ""
			cfg.Cookies.File = ""
			return nil
		}, "Cookie authentication disabled")
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configured cookie source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printAuthStatus(cookies.FromConfig(cfg.Cookies).Status())
		return nil
	},
}

func init() {
	authCmd.AddCommand(authBrowserCmd)
	authCmd.AddCommand(authCookieFileCmd)
	authCmd.AddCommand(authClearCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func printAuthStatus(st cookies.Status) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	bold.Print("Mode:   ")
	fmt.Println(st.Mode)
	bold.Print("Detail: ")
	fmt.Println(st.Detail)
	if st.Configured {
		green.Println("✓ configured")
	} else {
		yellow.Println("! not configured")
	}
}
