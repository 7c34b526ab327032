package generation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ProfileLink returns the live symlink path for a profile.
func (s *Store) ProfileLink(profile string) string {
	return filepath.Join(s.profilesDir, profile)
}

// GenerationLink returns the per-generation closure link path, mirroring the
// system-N-link layout of Nix profiles.
func (s *Store) GenerationLink(profile string, number uint64) string {
	return filepath.Join(s.profilesDir, fmt.Sprintf("%s-%d-link", profile, number))
}

// CurrentTarget resolves the closure the live profile symlink points at.
// An absent link returns an empty path without error.
func (s *Store) CurrentTarget(profile string) (string, error) {
	target, err := os.Readlink(s.ProfileLink(profile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read profile link %s: %w", profile, err)
	}
	return target, nil
}

// SwitchProfileLink atomically re-points the live profile symlink at the
// given closure. The swap is a create-then-rename so readers always observe
// either the old or the new target.
func (s *Store) SwitchProfileLink(profile, closurePath string) error {
	link := s.ProfileLink(profile)
	tmp := link + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear stale profile link: %w", err)
	}
	if err := os.Symlink(closurePath, tmp); err != nil {
		return fmt.Errorf("create profile link: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("swap profile link: %w", err)
	}
	return nil
}

func (s *Store) writeGenerationLink(gen *Generation) error {
	link := s.GenerationLink(gen.Profile, gen.Number)
	if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear stale generation link: %w", err)
	}
	if err := os.Symlink(gen.ClosurePath, link); err != nil {
		return fmt.Errorf("create generation link: %w", err)
	}
	return nil
}

func (s *Store) removeGenerationLink(gen *Generation) {
	_ = os.Remove(s.GenerationLink(gen.Profile, gen.Number))
}
