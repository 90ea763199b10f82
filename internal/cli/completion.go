package cli

import (
	"os"
	"strings"

	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/guiyumin/mediagrab/internal/core/extractor"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for mediagrab.

Bash:
  # Add to ~/.bashrc:
  source <(mediagrab completion bash)

  # Or install to system:
  mediagrab completion bash > /etc/bash_completion.d/mediagrab

Zsh:
  # Add to ~/.zshrc:
  source <(mediagrab completion zsh)

  # Or install to fpath:
  mediagrab completion zsh > "${fpath[1]}/_mediagrab"

Fish:
  mediagrab completion fish > ~/.config/fish/completions/mediagrab.fish

PowerShell:
  mediagrab completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

var (
	completionFormats   = []string{"mp4", "webm", "mkv", "mov", "mp3", "m4a", "opus", "flac", "wav", "jpg", "png"}
	completionQualities = []string{"4K", "1080p", "720p", "480p", "360p", "320kbps", "192kbps", "128kbps", "Original"}
)

func init() {
	rootCmd.AddCommand(completionCmd)
}

// registerCompletions runs after every command has defined its flags
func registerCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("platform", completePlatforms)
	_ = downloadCmd.RegisterFlagCompletionFunc("format", fixedCompletion(completionFormats))
	_ = downloadCmd.RegisterFlagCompletionFunc("quality", fixedCompletion(completionQualities))
	authBrowserCmd.ValidArgsFunction = completeBrowsers

	keys := fixedCompletion(configKeys)
	configSetCmd.ValidArgsFunction = completeFirstArg(keys)
	configGetCmd.ValidArgsFunction = completeFirstArg(keys)
	configUnsetCmd.ValidArgsFunction = completeFirstArg(keys)
}

type completionFunc func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective)

func completePlatforms(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(extractor.IDs(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeBrowsers(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return filterPrefix(config.LoadOrDefault().Cookies.AllowedBrowsers, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func fixedCompletion(values []string) completionFunc {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return filterPrefix(values, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// completeFirstArg completes only the first positional argument
func completeFirstArg(fn completionFunc) completionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return fn(cmd, args, toComplete)
	}
}

func filterPrefix(values []string, prefix string) []string {
	var out []string
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) {
			out = append(out, v)
		}
	}
	return out
}
