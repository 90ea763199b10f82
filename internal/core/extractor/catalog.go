package extractor

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// buildCatalog partitions raw formats into buckets, keeps the first entry per
// key, sorts each bucket by rank and caps its length.
func (p *Platform) buildCatalog(formats []rawFormat, contentType MediaType) FormatCatalog {
	video := newBucket(maxVideoFormats)
	secondary := newBucket(maxSecondaryFormats)

	for _, f := range formats {
		if f.Ext == "" {
			continue
		}
		ext := strings.ToLower(f.Ext)

		switch {
		case f.hasVideo():
			label := videoLabel(f.Height)
			video.add(label, FormatOption{
				FormatID: f.FormatID,
				Ext:      ext,
				Quality:  label,
				Height:   f.Height,
				Filesize: f.size(),
				Type:     MediaTypeVideo,
			})
		case p.Secondary == MediaTypeAudio && f.hasAudio():
			abr := int(math.Round(f.ABR))
			if abr <= 0 {
				abr = 128
			}
			label := fmt.Sprintf("%dkbps", abr)
			secondary.add(label, FormatOption{
				FormatID: f.FormatID,
				Ext:      ext,
				Quality:  label,
				Bitrate:  abr,
				Filesize: f.size(),
				Type:     MediaTypeAudio,
			})
		case p.Secondary == MediaTypeImage && imageExtensions[ext]:
			secondary.add(ext, FormatOption{
				FormatID: f.FormatID,
				Ext:      ext,
				Quality:  qualityOriginal,
				Filesize: f.size(),
				Type:     MediaTypeImage,
			})
		}
	}

	videoOpts, secondaryOpts := video.sorted(), secondary.sorted()

	switch p.Backfill {
	case BackfillNoFormats:
		if len(formats) == 0 {
			videoOpts = []FormatOption{placeholder(MediaTypeVideo)}
			secondaryOpts = []FormatOption{placeholder(p.Secondary)}
		}
	case BackfillEmptyBuckets:
		if len(videoOpts) == 0 {
			videoOpts = []FormatOption{placeholder(MediaTypeVideo)}
		}
		if len(secondaryOpts) == 0 {
			secondaryOpts = []FormatOption{placeholder(p.Secondary)}
		}
	case BackfillContentType:
		if len(videoOpts) == 0 && contentType == MediaTypeVideo {
			videoOpts = []FormatOption{placeholder(MediaTypeVideo)}
		}
		if len(secondaryOpts) == 0 && contentType == p.Secondary {
			secondaryOpts = []FormatOption{placeholder(p.Secondary)}
		}
	}

	catalog := FormatCatalog{Video: videoOpts}
	if catalog.Video == nil {
		catalog.Video = []FormatOption{}
	}
	if p.Secondary == MediaTypeAudio {
		catalog.Audio = secondaryOpts
	} else {
		catalog.Image = secondaryOpts
	}
	return catalog
}

func videoLabel(height int) string {
	switch {
	case height >= 2160:
		return "4K"
	case height > 0:
		return fmt.Sprintf("%dp", height)
	default:
		return qualityOriginal
	}
}

func placeholder(t MediaType) FormatOption {
	opt := FormatOption{Quality: qualityOriginal, Type: t}
	if t == MediaTypeImage {
		opt.Ext = "jpg"
	}
	return opt
}

// bucket collects options keyed by dedup key, first seen wins
type bucket struct {
	limit int
	seen  map[string]bool
	opts  []FormatOption
}

func newBucket(limit int) *bucket {
	return &bucket{limit: limit, seen: make(map[string]bool)}
}

func (b *bucket) add(key string, opt FormatOption) {
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.opts = append(b.opts, opt)
}

func (b *bucket) sorted() []FormatOption {
	slices.SortStableFunc(b.opts, func(a, c FormatOption) int {
		return c.Rank() - a.Rank()
	})
	if len(b.opts) > b.limit {
		return b.opts[:b.limit]
	}
	return b.opts
}
