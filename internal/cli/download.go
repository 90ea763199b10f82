package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/guiyumin/mediagrab/internal/core/downloader"
	"github.com/spf13/cobra"
)

var (
	formatFlag  string
	qualityFlag string
	plainFlag   bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download media into the configured output directory",
	Long: `Download media with yt-dlp and print the resolved file.

Without -f/-q the config defaults apply, then the platform defaults.

Examples:
  mediagrab download https://youtu.be/dQw4w9WgXcQ -q 1080p
  mediagrab download https://youtu.be/dQw4w9WgXcQ -f mp3
  mediagrab download https://www.instagram.com/p/abc/ --plain`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd.Context(), args[0])
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&formatFlag, "format", "f", "", "output format (mp4, webm, mp3, m4a, jpg, ...)")
	downloadCmd.Flags().StringVarP(&qualityFlag, "quality", "q", "", "quality (4K, 1080p, 720p, 320kbps, Original, ...)")
	downloadCmd.Flags().BoolVar(&plainFlag, "plain", false, "print progress lines instead of the interactive view")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(ctx context.Context, url string) error {
	p, err := resolvePlatform(url)
	if err != nil {
		return err
	}
	cfg, svc, err := newService()
	if err != nil {
		return err
	}

	format := firstNonEmpty(formatFlag, cfg.Format)
	quality := firstNonEmpty(qualityFlag, cfg.Quality)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	task, err := svc.StartDownload(ctx, p.ID, url, format, quality)
	if err != nil {
		return err
	}

	var res *downloader.Result
	if plainFlag {
		res, err = followPlain(task)
	} else {
		res, err = downloader.RunTaskTUI(task, fmt.Sprintf("%s %s %s", p.DisplayName, format, quality))
		if errors.Is(err, downloader.ErrInterrupted) {
			cancel()
			task.Wait()
			return err
		}
	}
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Print("✓ ")
	fmt.Printf("%s (%s)\n", res.Path, formatSize(res.Size))
	return nil
}

func followPlain(task *downloader.Task) (*downloader.Result, error) {
	for p := range task.Progress() {
		line := fmt.Sprintf("%5.1f%%", p.Percent)
		if p.Total != "" {
			line += " of " + p.Total
		}
		if p.Speed != "" {
			line += " at " + p.Speed
		}
		if p.ETA != "" {
			line += " ETA " + p.ETA
		}
		fmt.Println(line)
	}
	return task.Wait()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
