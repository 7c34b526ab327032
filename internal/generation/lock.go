package generation

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ProfileLock is an exclusive cross-process lock scoped to one profile. It
// guards the promote/demote and prune critical sections so two concurrent
// invocations cannot both mutate generation state. Hold it for the shortest
// possible span and never across a build.
type ProfileLock struct {
	flock *flock.Flock
	path  string
}

// LockProfile acquires the profile's exclusive lock, failing fast when
// another invocation holds it.
func (s *Store) LockProfile(profile string) (*ProfileLock, error) {
	path := filepath.Join(s.stateDir, profile+".lock")
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire profile lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("profile %s is locked by another nixgen invocation", profile)
	}
	return &ProfileLock{flock: fl, path: path}, nil
}

// Unlock releases the lock.
func (l *ProfileLock) Unlock() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}

// Path returns the lock file location.
func (l *ProfileLock) Path() string {
	return l.path
}
