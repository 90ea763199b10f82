package quality

import (
	"fmt"
	"strings"
)

// audioFormats are targets yt-dlp can extract with -x
var audioFormats = map[string]bool{
	"mp3": true, "m4a": true, "aac": true, "flac": true,
	"opus": true, "wav": true, "vorbis": true, "alac": true,
}

// mergeContainers are the containers --merge-output-format accepts
var mergeContainers = map[string]bool{
	"mp4": true, "mkv": true, "webm": true, "mov": true, "avi": true, "flv": true,
}

const defaultContainer = "mp4"

// Selection is the yt-dlp format selection for one download
type Selection struct {
	// Expression is passed to -f; empty lets yt-dlp choose
	Expression string

	// PostProcess flags follow the selection (merge or audio extraction)
	PostProcess []string

	// Ext is the extension the final artifact is expected to carry
	Ext string
}

// Args renders the selection as yt-dlp flags
func (s Selection) Args() []string {
	var args []string
	if s.Expression != "" {
		args = append(args, "-f", s.Expression)
	}
	return append(args, s.PostProcess...)
}

// IsAudio reports whether format is an audio-only target
func IsAudio(format string) bool {
	return audioFormats[strings.ToLower(format)]
}

// Height maps a quality label to its height cap.
// Unrecognized labels fall back to 360.
func Height(label string) int {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "4k", "2160p":
		return 2160
	case "1080p":
		return 1080
	case "720p":
		return 720
	case "480p":
		return 480
	default:
		return 360
	}
}

// Resolve maps a requested (format, quality) pair to a selection. Tiered
// platforms cap the video height; others pass format through as a hint.
func Resolve(tiered bool, format, quality string) Selection {
	format = strings.ToLower(strings.TrimSpace(format))

	if IsAudio(format) {
		return Selection{
			PostProcess: []string{"-x", "--audio-format", format, "--audio-quality", "0"},
			Ext:         format,
		}
	}

	if !tiered {
		return Selection{Ext: format}
	}

	container := format
	if !mergeContainers[container] {
		container = defaultContainer
	}
	h := Height(quality)
	return Selection{
		Expression:  fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", h, h),
		PostProcess: []string{"--merge-output-format", container},
		Ext:         container,
	}
}
