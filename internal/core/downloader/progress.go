package downloader

import (
	"bufio"
	"bytes"
	"io"
	"iter"
	"regexp"
	"strconv"
)

// Progress is one observed download percentage
type Progress struct {
	Percent float64 `json:"percent"`
	Total   string  `json:"total,omitempty"` // e.g. "10.00MiB"
	Speed   string  `json:"speed,omitempty"` // e.g. "2.00MiB/s"
	ETA     string  `json:"eta,omitempty"`
}

// Parser extracts progress from a single line of extractor output
type Parser interface {
	Parse(line string) (Progress, bool)
}

// yt-dlp: "[download]  45.2% of ~  10.00MiB at    2.00MiB/s ETA 00:05"
var downloadLineRegex = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%(?:\s+of\s+~?\s*(\S+))?(?:\s+at\s+(\S+))?(?:\s+ETA\s+(\S+))?`)

// any bare "NN.N%" token
var percentRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// LineParser understands yt-dlp --newline progress lines and falls back to
// the first percentage token on any other line.
type LineParser struct{}

func (LineParser) Parse(line string) (Progress, bool) {
	if m := downloadLineRegex.FindStringSubmatch(line); m != nil {
		pct, ok := parsePercent(m[1])
		if !ok {
			return Progress{}, false
		}
		return Progress{Percent: pct, Total: m[2], Speed: m[3], ETA: m[4]}, true
	}
	if m := percentRegex.FindStringSubmatch(line); m != nil {
		if pct, ok := parsePercent(m[1]); ok {
			return Progress{Percent: pct}, true
		}
	}
	return Progress{}, false
}

func parsePercent(s string) (float64, bool) {
	pct, err := strconv.ParseFloat(s, 64)
	if err != nil || pct < 0 {
		return 0, false
	}
	return min(pct, 100), true
}

// Parse yields progress events from r line by line. The sequence is lazy and
// consumes r, so it can only be ranged over once.
func Parse(r io.Reader, p Parser) iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		sc.Split(scanLines)
		for sc.Scan() {
			if pr, ok := p.Parse(sc.Text()); ok {
				if !yield(pr) {
					return
				}
			}
		}
	}
}

// Monotonic passes through only events whose percent exceeds every earlier one.
func Monotonic(seq iter.Seq[Progress]) iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		last := 0.0
		for p := range seq {
			if p.Percent <= last {
				continue
			}
			last = p.Percent
			if !yield(p) {
				return
			}
		}
	}
}

// scanLines splits on \n or \r so carriage-return progress redraws are
// seen as separate lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
