package extractor

import "regexp"

// YouTube lists separate audio streams and supports height-capped selection
var YouTube = &Platform{
	ID:               "youtube",
	DisplayName:      "YouTube",
	pattern:          regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.|music\.)?(youtube\.com|youtu\.be)/.+`),
	PlaceholderTitle: "YouTube Video",
	DefaultChannel:   "Unknown Channel",
	ChannelFirst:     true,
	Secondary:        MediaTypeAudio,
	Tiered:           true,
	Backfill:         BackfillNoFormats,
	DefaultFormat:    "mp4",
	DefaultQuality:   "720p",
}

func init() {
	Register(YouTube,
		"youtube.com",
		"youtu.be",
		"music.youtube.com",
	)
}
