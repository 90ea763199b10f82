package extractor

import (
	"net/url"
	"slices"
	"strings"

	"github.com/guiyumin/mediagrab/internal/core/fault"
)

// platformsByHost maps hostnames to their platform
var platformsByHost = map[string]*Platform{}

// platformsByID maps platform IDs ("youtube") to their platform
var platformsByID = map[string]*Platform{}

// Register adds a platform for the given hostnames
func Register(p *Platform, hosts ...string) {
	platformsByID[p.ID] = p
	for _, host := range hosts {
		platformsByHost[host] = p
	}
}

// Match finds the platform for a URL using hostname lookup.
// Returns nil for unknown hosts.
func Match(rawURL string) *Platform {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	if p, ok := platformsByHost[host]; ok && p.Match(u) {
		return p
	}

	// Try without www. or m. prefix
	for _, prefix := range []string{"www.", "m."} {
		if trimmed, ok := strings.CutPrefix(host, prefix); ok {
			if p, ok := platformsByHost[trimmed]; ok && p.Match(u) {
				return p
			}
		}
	}

	return nil
}

// Lookup returns the platform registered under id
func Lookup(id string) (*Platform, error) {
	if p, ok := platformsByID[strings.ToLower(id)]; ok {
		return p, nil
	}
	return nil, fault.New(fault.KindInvalidInput, "unsupported platform %q", id)
}

// List returns all registered platforms ordered by ID
func List() []*Platform {
	result := make([]*Platform, 0, len(platformsByID))
	for _, p := range platformsByID {
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b *Platform) int {
		return strings.Compare(a.ID, b.ID)
	})
	return result
}

// IDs returns the registered platform IDs in order
func IDs() []string {
	var ids []string
	for _, p := range List() {
		ids = append(ids, p.ID)
	}
	return ids
}
