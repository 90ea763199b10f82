package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/guiyumin/mediagrab/internal/core/version"
)

const (
	repoOwner = "guiyumin"
	repoName  = "mediagrab"
)

// ErrNoRelease means the release source has nothing for this platform
var ErrNoRelease = errors.New("no release found")

// Status compares the running binary with the latest release
type Status struct {
	Current   string
	Latest    string
	Available bool
	release   *selfupdate.Release
}

// Check looks up the latest GitHub release
func Check(ctx context.Context) (*Status, error) {
	up, err := newUpdater()
	if err != nil {
		return nil, err
	}

	latest, found, err := up.DetectLatest(ctx, selfupdate.NewRepositorySlug(repoOwner, repoName))
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w for %s/%s", ErrNoRelease, repoOwner, repoName)
	}

	current := trimVersion(version.Version)
	return &Status{
		Current:   current,
		Latest:    latest.Version(),
		Available: !latest.LessOrEqual(current),
		release:   latest,
	}, nil
}

// Apply replaces the running executable with the release from st
func Apply(ctx context.Context, st *Status) error {
	if !st.Available {
		return nil
	}
	up, err := newUpdater()
	if err != nil {
		return err
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if err := up.UpdateTo(ctx, st.release, exe); err != nil {
		return fmt.Errorf("failed to update: %w", err)
	}
	return nil
}

func newUpdater() (*selfupdate.Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, err
	}
	return selfupdate.NewUpdater(selfupdate.Config{Source: source})
}

// trimVersion drops a leading "v" so versions compare as semver
func trimVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}
