package closure

import (
	"sort"
	"strings"
)

// Kind classifies how a component changed between two closures.
type Kind string

const (
	KindAdded      Kind = "added"
	KindRemoved    Kind = "removed"
	KindUpgraded   Kind = "upgraded"
	KindDowngraded Kind = "downgraded"
	// KindChanged means the component's content changed while its version
	// string stayed identical or the two versions admit no total order.
	KindChanged   Kind = "changed"
	KindUnchanged Kind = "unchanged"
)

// Entry is one component delta. Entries are derived per comparison and never
// persisted.
type Entry struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	OldVersion string `json:"old_version,omitempty"`
	NewVersion string `json:"new_version,omitempty"`
}

type componentSet struct {
	versions []string
	hashes   map[string]struct{}
}

// Diff computes the delta between two closures, sorted by component name
// ascending. The same pair of closures always yields the same output.
func Diff(oldClosure, newClosure *Closure) []Entry {
	oldSet := groupComponents(oldClosure)
	newSet := groupComponents(newClosure)

	names := make([]string, 0, len(oldSet)+len(newSet))
	for name := range oldSet {
		names = append(names, name)
	}
	for name := range newSet {
		if _, seen := oldSet[name]; !seen {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		before, inOld := oldSet[name]
		after, inNew := newSet[name]
		switch {
		case inOld && !inNew:
			entries = append(entries, Entry{
				Name:       name,
				Kind:       KindRemoved,
				OldVersion: joinVersions(before.versions),
			})
		case !inOld && inNew:
			entries = append(entries, Entry{
				Name:       name,
				Kind:       KindAdded,
				NewVersion: joinVersions(after.versions),
			})
		default:
			entries = append(entries, classify(name, before, after))
		}
	}
	return entries
}

func classify(name string, before, after *componentSet) Entry {
	entry := Entry{
		Name:       name,
		OldVersion: joinVersions(before.versions),
		NewVersion: joinVersions(after.versions),
	}

	if equalStrings(before.versions, after.versions) {
		if equalHashes(before.hashes, after.hashes) {
			entry.Kind = KindUnchanged
		} else {
			entry.Kind = KindChanged
		}
		return entry
	}

	switch compareVersions(highestVersion(before.versions), highestVersion(after.versions)) {
	case orderLess:
		entry.Kind = KindUpgraded
	case orderGreater:
		entry.Kind = KindDowngraded
	case orderEqual:
		if equalHashes(before.hashes, after.hashes) {
			entry.Kind = KindUnchanged
		} else {
			entry.Kind = KindChanged
		}
	default:
		entry.Kind = KindChanged
	}
	return entry
}

func groupComponents(c *Closure) map[string]*componentSet {
	grouped := make(map[string]*componentSet)
	if c == nil {
		return grouped
	}
	for _, component := range c.Components {
		name := component.Name
		if name == "" {
			continue
		}
		set, ok := grouped[name]
		if !ok {
			set = &componentSet{hashes: make(map[string]struct{})}
			grouped[name] = set
		}
		if component.Version != "" && !containsString(set.versions, component.Version) {
			set.versions = append(set.versions, component.Version)
		}
		if component.Hash != "" {
			set.hashes[component.Hash] = struct{}{}
		}
	}
	for _, set := range grouped {
		sort.Strings(set.versions)
	}
	return grouped
}

// highestVersion picks the comparison representative for a version set: the
// greatest version under the best-effort order, falling back to the last in
// lexical order.
func highestVersion(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if compareVersions(best, v) == orderLess {
			best = v
		}
	}
	return best
}

func joinVersions(versions []string) string {
	return strings.Join(versions, ", ")
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalHashes(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for hash := range a {
		if _, ok := b[hash]; !ok {
			return false
		}
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
