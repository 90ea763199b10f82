package extractor

import "regexp"

// Instagram covers reels, posts and public stories
var Instagram = &Platform{
	ID:               "instagram",
	DisplayName:      "Instagram",
	pattern:          regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.)?instagram\.com/.+`),
	PlaceholderTitle: "Instagram Content",
	DefaultChannel:   "@unknown",
	Secondary:        MediaTypeImage,
	Backfill:         BackfillEmptyBuckets,
	DefaultFormat:    "mp4",
	DefaultQuality:   qualityOriginal,
}

func init() {
	Register(Instagram,
		"instagram.com",
	)
}
