package closure

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/mod/semver"
)

type ordering int

const (
	orderLess ordering = iota
	orderEqual
	orderGreater
	// orderIncomparable is an explicit outcome: no total order could be
	// established between the two version strings.
	orderIncomparable
)

// compareVersions orders two version strings best-effort. Well-formed semver
// pairs use the canonical comparison; otherwise versions are compared
// segment-wise, numerically where both segments are numeric. Mixed or
// structurally different versions yield orderIncomparable rather than a guess.
func compareVersions(a, b string) ordering {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == b {
		return orderEqual
	}
	if a == "" || b == "" {
		return orderIncomparable
	}

	if va, vb := canonicalSemver(a), canonicalSemver(b); va != "" && vb != "" {
		switch semver.Compare(va, vb) {
		case -1:
			return orderLess
		case 1:
			return orderGreater
		default:
			return orderEqual
		}
	}

	return compareSegments(splitSegments(a), splitSegments(b))
}

func canonicalSemver(v string) string {
	candidate := "v" + strings.TrimPrefix(v, "v")
	if semver.IsValid(candidate) {
		return candidate
	}
	return ""
}

func splitSegments(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
}

func compareSegments(a, b []string) ordering {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if cmp := compareSegment(a[i], b[i]); cmp != orderEqual {
			return cmp
		}
	}
	switch {
	case len(a) == len(b):
		return orderEqual
	case len(a) < len(b):
		return orderLess
	default:
		return orderGreater
	}
}

func compareSegment(a, b string) ordering {
	aNum, aOk := parseNumeric(a)
	bNum, bOk := parseNumeric(b)
	switch {
	case aOk && bOk:
		switch {
		case aNum < bNum:
			return orderLess
		case aNum > bNum:
			return orderGreater
		default:
			return orderEqual
		}
	case !aOk && !bOk:
		// Two alphabetic segments (e.g. "beta" vs "rc") order lexically
		// only when neither contains digits; anything else is ambiguous.
		if hasDigit(a) || hasDigit(b) {
			return orderIncomparable
		}
		switch {
		case a < b:
			return orderLess
		case a > b:
			return orderGreater
		default:
			return orderEqual
		}
	default:
		return orderIncomparable
	}
}

func parseNumeric(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
