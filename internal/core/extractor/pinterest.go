package extractor

import "regexp"

// Pinterest pins are either a single image or a short video
var Pinterest = &Platform{
	ID:               "pinterest",
	DisplayName:      "Pinterest",
	pattern:          regexp.MustCompile(`(?i)^(https?://)?([a-z]{2,3}\.)?(pinterest\.[a-z]{2,3}(\.[a-z]{2})?|pin\.it)/.+`),
	PlaceholderTitle: "Pinterest Pin",
	DefaultChannel:   "Pinterest User",
	Secondary:        MediaTypeImage,
	Backfill:         BackfillContentType,
	DefaultFormat:    "mp4",
	DefaultQuality:   qualityOriginal,
}

func init() {
	// regional domains serve the same pins
	Register(Pinterest,
		"pinterest.com",
		"pin.it",
		"pinterest.co.uk",
		"pinterest.ca",
		"pinterest.com.au",
		"pinterest.com.mx",
		"pinterest.de",
		"pinterest.fr",
		"pinterest.es",
		"pinterest.it",
		"pinterest.jp",
		"pinterest.nz",
		"pinterest.ie",
		"pinterest.at",
		"pinterest.ch",
		"pinterest.pt",
		"pinterest.se",
		"pinterest.dk",
		"pinterest.cl",
		"pinterest.ph",
		"pinterest.co.kr",
		"br.pinterest.com",
		"in.pinterest.com",
	)
}
