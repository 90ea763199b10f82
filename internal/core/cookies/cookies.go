package cookies

import (
	"log"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/guiyumin/mediagrab/internal/core/config"
)

// Kind is the authentication strategy attached to extractor invocations
type Kind string

const (
	KindNone       Kind = "none"
	KindBrowser    Kind = "browser"
	KindCookieFile Kind = "cookie_file"
)

// Mode is an immutable auth mode value. The zero value means no auth.
type Mode struct {
	Kind       Kind   `json:"kind"`
	Browser    string `json:"browser,omitempty"`
	CookieFile string `json:"cookie_file,omitempty"`
}

func None() Mode { return Mode{Kind: KindNone} }
func Browser(name string) Mode { return Mode{Kind: KindBrowser, Browser: strings.ToLower(name)} }
func CookieFile(path string) Mode { return Mode{Kind: KindCookieFile, CookieFile: path} }

// Args returns the yt-dlp flags for this mode. A cookie file that no longer
// exists contributes nothing.
func (m Mode) Args() []string {
	switch m.Kind {
	case KindBrowser:
		if m.Browser != "" {
			return []string{"--cookies-from-browser", m.Browser}
		}
	case KindCookieFile:
		if fileExists(m.CookieFile) {
			return []string{"--cookies", m.CookieFile}
		}
	}
	return nil
}

func (m Mode) String() string {
	switch m.Kind {
	case KindBrowser:
		return "browser:" + m.Browser
	case KindCookieFile:
		return "cookie_file:" + m.CookieFile
	}
	return string(KindNone)
}

// Status describes the active mode for display
type Status struct {
	Configured bool   `json:"configured"`
	Mode       Kind   `json:"mode"`
	Detail     string `json:"detail"`
}

// Store owns the process-wide auth mode. Writers swap the whole value so a
// reader never observes a half-updated mode; last write wins.
type Store struct {
	mode    atomic.Pointer[Mode]
	allowed []string
}

// NewStore creates a store whose browser names are checked against allowed.
// An empty allow-list uses config.DefaultBrowsers.
func NewStore(allowed []string, initial Mode) *Store {
	if len(allowed) == 0 {
		allowed = config.DefaultBrowsers
	}
	s := &Store{}
	for _, name := range allowed {
		s.allowed = append(s.allowed, strings.ToLower(name))
	}
	if initial.Kind == "" {
		initial = None()
	}
	s.mode.Store(&initial)
	return s
}

// FromConfig builds a store from the cookies section. A configured browser
// takes precedence over a cookie file.
func FromConfig(cfg config.CookiesConfig) *Store {
	s := NewStore(cfg.AllowedBrowsers, None())
	switch {
	case cfg.Browser != "":
		if !s.SetBrowser(cfg.Browser) {
			log.Printf("[cookies] ignoring unsupported browser %q", cfg.Browser)
		}
	case cfg.File != "":
		m := CookieFile(cfg.File)
		s.mode.Store(&m)
		if !fileExists(cfg.File) {
			log.Printf("[cookies] cookie file %s does not exist yet", cfg.File)
		}
	}
	return s
}

// Snapshot returns the current mode. Read it once per request.
func (s *Store) Snapshot() Mode {
	return *s.mode.Load()
}

// Allowed returns the accepted browser names
func (s *Store) Allowed() []string {
	return slices.Clone(s.allowed)
}

// SetBrowser switches to browser-cookie extraction. Unknown names are
// rejected and leave the current mode unchanged.
func (s *Store) SetBrowser(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if !slices.Contains(s.allowed, name) {
		return false
	}
	m := Browser(name)
	s.mode.Store(&m)
	return true
}

// Set replaces the mode after validating it. A cookie file must exist.
func (s *Store) Set(m Mode) bool {
	switch m.Kind {
	case KindBrowser:
		return s.SetBrowser(m.Browser)
	case KindCookieFile:
		if !fileExists(m.CookieFile) {
			return false
		}
		s.mode.Store(&m)
		return true
	case KindNone, "":
		s.Clear()
		return true
	}
	return false
}

// Clear disables cookie auth
func (s *Store) Clear() {
	m := None()
	s.mode.Store(&m)
}

// Status reports the active mode. A cookie file counts as configured only
// while it exists.
func (s *Store) Status() Status {
	m := s.Snapshot()
	switch m.Kind {
	case KindBrowser:
		return Status{Configured: true, Mode: m.Kind, Detail: m.Browser}
	case KindCookieFile:
		return Status{Configured: fileExists(m.CookieFile), Mode: m.Kind, Detail: m.CookieFile}
	}
	return Status{Mode: KindNone, Detail: "no cookie source configured"}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
