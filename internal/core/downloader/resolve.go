package downloader

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/guiyumin/mediagrab/internal/core/fault"
)

// formatIDInfix matches yt-dlp's per-stream names, e.g. ".f137.mp4"
var formatIDInfix = regexp.MustCompile(`^\.f[0-9A-Za-z_-]+\.`)

type candidate struct {
	name string
	size int64
	// suffix is the part of the name after the invocation marker
	suffix string
}

func (c candidate) ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(c.name)), ".")
}

func (c candidate) partial() bool {
	return strings.HasSuffix(c.name, ".part") ||
		strings.HasSuffix(c.name, ".ytdl") ||
		strings.Contains(c.suffix, ".part-Frag")
}

func (c candidate) streamPart() bool {
	return formatIDInfix.MatchString(c.suffix)
}

// intermediate reports whether c is a transient file left behind by a run
// whose final artifact has extension finalExt.
func (c candidate) intermediate(finalExt string) bool {
	switch {
	case c.partial(), c.streamPart():
		return true
	case strings.Contains(c.suffix, ".temp."):
		return true
	case c.ext() == "webm" && finalExt != "webm":
		return true
	}
	return false
}

// scanCandidates lists regular files in dir whose name contains marker
func scanCandidates(dir, marker string) ([]candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &fault.Error{Kind: fault.KindFileResolution, Message: "cannot read output directory", Err: err}
	}

	var out []candidate
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		idx := strings.Index(e.Name(), marker)
		if idx < 0 {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, candidate{
			name:   e.Name(),
			size:   info.Size(),
			suffix: e.Name()[idx+len(marker):],
		})
	}
	return out, nil
}

// selectArtifact picks the final file: the largest complete file with the
// expected extension, else the largest complete file of any extension.
func selectArtifact(cands []candidate, expectedExt string) (candidate, bool) {
	var best, fallback candidate
	var haveBest, haveFallback bool

	for _, c := range cands {
		if c.partial() {
			continue
		}
		if expectedExt != "" && c.ext() == expectedExt && !c.streamPart() {
			if !haveBest || c.size > best.size {
				best, haveBest = c, true
			}
		}
		if !haveFallback || c.size > fallback.size {
			fallback, haveFallback = c, true
		}
	}

	if haveBest {
		return best, true
	}
	return fallback, haveFallback
}

// resolveArtifact finds the file produced under marker in dir and removes
// intermediate siblings. Removal failures are logged, not returned.
func resolveArtifact(dir, marker, expectedExt string) (candidate, error) {
	cands, err := scanCandidates(dir, marker)
	if err != nil {
		return candidate{}, err
	}
	if len(cands) == 0 {
		return candidate{}, fault.New(fault.KindFileResolution, "download completed but file not found")
	}

	selected, ok := selectArtifact(cands, strings.ToLower(expectedExt))
	if !ok {
		return candidate{}, fault.New(fault.KindFileResolution, "download completed but only partial files were found")
	}

	for _, c := range cands {
		if c.name == selected.name || !c.intermediate(selected.ext()) {
			continue
		}
		path := filepath.Join(dir, c.name)
		if err := os.Remove(path); err != nil {
			log.Printf("[download] could not delete temp file %s: %v", c.name, err)
			continue
		}
		log.Printf("[download] cleaned up temp file %s", c.name)
	}

	return selected, nil
}
