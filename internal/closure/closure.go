package closure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"nixgen/internal/runner"
	"nixgen/internal/services"
)

// Component is one named store path inside a closure.
type Component struct {
	Name    string
	Version string
	Hash    string
}

// Closure is an immutable built filesystem artifact: a content-addressed path
// plus the set of named components reachable from it.
type Closure struct {
	Path       string
	Components []Component
}

// Resolver produces a Closure from a store path. The production
// implementation queries the store through the process runner; tests inject
// fixtures.
type Resolver func(ctx context.Context, path string) (*Closure, error)

// NewResolver returns a Resolver that introspects closures with
// `<storeBinary> --query --requisites`. The store query is the only
// subprocess this package issues, and it runs through the shared executor.
func NewResolver(exec runner.Executor, storeBinary string) Resolver {
	return func(ctx context.Context, path string) (*Closure, error) {
		return resolve(ctx, exec, storeBinary, path)
	}
}

func resolve(ctx context.Context, exec runner.Executor, storeBinary, path string) (*Closure, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrClosureUnreadable, "closure", "resolve", "empty path", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, services.Wrap(services.ErrClosureUnreadable, "closure", "resolve", path, err)
	}

	res, err := exec.Run(ctx, storeBinary, []string{"--query", "--requisites", path}, runner.Options{})
	if err != nil {
		return nil, services.Wrap(services.ErrClosureUnreadable, "closure", "query", path, err)
	}
	if res.ExitCode != 0 {
		return nil, services.Wrap(services.ErrClosureUnreadable, "closure", "query",
			fmt.Sprintf("%s: %s", path, res.StderrTail(3)), nil)
	}

	components := make([]Component, 0, len(res.Stdout))
	for _, line := range res.Stdout {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		components = append(components, ParseStorePath(line))
	}
	sort.Slice(components, func(i, j int) bool {
		if components[i].Name != components[j].Name {
			return components[i].Name < components[j].Name
		}
		return components[i].Version < components[j].Version
	})
	return &Closure{Path: path, Components: components}, nil
}

// ParseStorePath splits a store path basename of the form
// <hash>-<name>[-<version>] into its component parts. The version starts at
// the first dash-separated segment that begins with a digit.
func ParseStorePath(storePath string) Component {
	base := filepath.Base(storePath)
	hash, rest, ok := strings.Cut(base, "-")
	if !ok || !looksLikeStoreHash(hash) {
		return Component{Name: base}
	}

	segments := strings.Split(rest, "-")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if unicode.IsDigit(rune(segment[0])) {
			return Component{
				Name:    strings.Join(segments[:i], "-"),
				Version: strings.Join(segments[i:], "-"),
				Hash:    hash,
			}
		}
	}
	return Component{Name: rest, Hash: hash}
}

func looksLikeStoreHash(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
