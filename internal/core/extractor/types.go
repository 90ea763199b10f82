package extractor

import (
	"fmt"
	"math"
)

// MediaType represents the type of media a format or item carries
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeImage MediaType = "image"
)

const (
	maxVideoFormats     = 6
	maxSecondaryFormats = 3

	maxDescriptionRunes = 500
	maxTitleRunes       = 100

	qualityOriginal = "Original"
)

// imageExtensions identify image-only formats in the yt-dlp format list
var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true,
}

// ContentInfo is the normalized metadata for one URL. It is built fresh per
// request and never modified afterwards.
type ContentInfo struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description,omitempty"`
	Thumbnail         string        `json:"thumbnail,omitempty"`
	Duration          float64       `json:"duration"`
	DurationFormatted string        `json:"durationFormatted,omitempty"`
	Channel           string        `json:"channel"`
	ChannelURL        string        `json:"channelUrl,omitempty"`
	ViewCount         *int64        `json:"viewCount,omitempty"`
	UploadDate        string        `json:"uploadDate,omitempty"`
	Formats           FormatCatalog `json:"formats"`
	URL               string        `json:"url"`
	Platform          string        `json:"platform"`
	ContentType       MediaType     `json:"contentType"`
}

// FormatCatalog holds the deduplicated download options. Video is always
// present; a platform fills either Audio or Image as its second bucket.
type FormatCatalog struct {
	Video []FormatOption `json:"video"`
	Audio []FormatOption `json:"audio,omitempty"`
	Image []FormatOption `json:"image,omitempty"`
}

// FormatOption is a single quality choice
type FormatOption struct {
	FormatID string    `json:"formatId,omitempty"`
	Ext      string    `json:"ext,omitempty"`
	Quality  string    `json:"quality"` // "1080p", "4K", "128kbps", "Original"
	Height   int       `json:"height,omitempty"`
	Bitrate  int       `json:"abr,omitempty"` // kbps
	Filesize *int64    `json:"filesize,omitempty"`
	Type     MediaType `json:"type"`
}

// Rank orders options within a bucket: height for video, bitrate for audio.
func (f FormatOption) Rank() int {
	if f.Type == MediaTypeAudio {
		return f.Bitrate
	}
	return f.Height
}

// rawInfo is the subset of `yt-dlp --dump-json` we consume
type rawInfo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Thumbnail   string      `json:"thumbnail"`
	Duration    float64     `json:"duration"`
	Channel     string      `json:"channel"`
	ChannelURL  string      `json:"channel_url"`
	Uploader    string      `json:"uploader"`
	UploaderURL string      `json:"uploader_url"`
	ViewCount   *int64      `json:"view_count"`
	UploadDate  string      `json:"upload_date"`
	Formats     []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Height         int      `json:"height"`
	ABR            float64  `json:"abr"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
}

func (f rawFormat) hasVideo() bool { return f.VCodec != "" && f.VCodec != "none" }
func (f rawFormat) hasAudio() bool { return f.ACodec != "" && f.ACodec != "none" }

// size returns the exact size, falling back to yt-dlp's estimate
func (f rawFormat) size() *int64 {
	for _, v := range []*float64{f.Filesize, f.FilesizeApprox} {
		if v != nil && *v > 0 {
			n := int64(*v)
			return &n
		}
	}
	return nil
}

// FormatDuration renders seconds as "m:ss" or "h:mm:ss". Zero renders empty.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	total := int(math.Floor(seconds))
	hrs := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	if hrs > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hrs, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
