package extractor

import (
	"net/url"
	"regexp"

	"github.com/guiyumin/mediagrab/internal/core/fault"
	"github.com/guiyumin/mediagrab/internal/core/quality"
)

// Backfill decides which empty buckets receive an "Original" placeholder
type Backfill int

const (
	// BackfillNoFormats adds placeholders only when yt-dlp lists no formats
	BackfillNoFormats Backfill = iota
	// BackfillEmptyBuckets fills every empty bucket
	BackfillEmptyBuckets
	// BackfillContentType fills only the bucket matching the content type
	BackfillContentType
)

// Platform is the per-site profile for argument building and metadata mapping
type Platform struct {
	ID          string
	DisplayName string

	// pattern validates submitted URLs
	pattern *regexp.Regexp

	PlaceholderTitle string
	DefaultChannel   string

	// ChannelFirst prefers yt-dlp's channel over uploader
	ChannelFirst bool

	// Secondary is the second catalog bucket: audio or image
	Secondary MediaType

	// Tiered platforms support height-capped quality selection
	Tiered bool

	Backfill Backfill

	DefaultFormat  string
	DefaultQuality string
}

func (p *Platform) Name() string { return p.ID }

// Match returns true if the parsed URL belongs to this platform
func (p *Platform) Match(u *url.URL) bool {
	return p.pattern.MatchString(u.String())
}

// Validate rejects URLs this platform cannot handle
func (p *Platform) Validate(rawURL string) error {
	if rawURL == "" {
		return fault.New(fault.KindInvalidInput, "URL is required")
	}
	if !p.pattern.MatchString(rawURL) {
		return fault.New(fault.KindInvalidInput, "invalid %s URL", p.DisplayName)
	}
	return nil
}

// Resolve maps a requested format and quality to a yt-dlp selection.
// Empty values fall back to the platform defaults.
func (p *Platform) Resolve(format, q string) quality.Selection {
	if format == "" {
		format = p.DefaultFormat
	}
	if q == "" {
		q = p.DefaultQuality
	}
	return quality.Resolve(p.Tiered, format, q)
}

// ResolveFormat resolves a selection for the platform with the given ID
func ResolveFormat(platformID, format, q string) (quality.Selection, error) {
	p, err := Lookup(platformID)
	if err != nil {
		return quality.Selection{}, err
	}
	return p.Resolve(format, q), nil
}

// contentInfo maps yt-dlp output into the normalized record
func (p *Platform) contentInfo(raw *rawInfo, sourceURL string) ContentInfo {
	contentType := MediaTypeImage
	if raw.Duration > 0 {
		contentType = MediaTypeVideo
	}

	title := raw.Title
	if title == "" {
		title = truncateRunes(raw.Description, maxTitleRunes)
	}
	if title == "" {
		title = p.PlaceholderTitle
	}

	channel, channelURL := raw.Uploader, raw.UploaderURL
	if p.ChannelFirst {
		channel, channelURL = raw.Channel, raw.ChannelURL
	}
	if channel == "" {
		channel = firstNonEmpty(raw.Channel, raw.Uploader, p.DefaultChannel)
	}
	if channelURL == "" {
		channelURL = firstNonEmpty(raw.ChannelURL, raw.UploaderURL)
	}

	return ContentInfo{
		ID:                raw.ID,
		Title:             title,
		Description:       truncateRunes(raw.Description, maxDescriptionRunes),
		Thumbnail:         raw.Thumbnail,
		Duration:          raw.Duration,
		DurationFormatted: FormatDuration(raw.Duration),
		Channel:           channel,
		ChannelURL:        channelURL,
		ViewCount:         raw.ViewCount,
		UploadDate:        raw.UploadDate,
		Formats:           p.buildCatalog(raw.Formats, contentType),
		URL:               sourceURL,
		Platform:          p.ID,
		ContentType:       contentType,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
