package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"nixgen/internal/logging"
)

// EnvironmentMap is an ordered set of NAME=value pairs. Iteration follows
// insertion order so shell output stays stable across runs.
type EnvironmentMap struct {
	keys   []string
	values map[string]string
}

// NewEnvironmentMap returns an empty map.
func NewEnvironmentMap() *EnvironmentMap {
	return &EnvironmentMap{values: make(map[string]string)}
}

// Set records a pair, keeping the original position when the key repeats.
func (m *EnvironmentMap) Set(key, value string) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get looks a key up.
func (m *EnvironmentMap) Get(key string) (string, bool) {
	value, ok := m.values[key]
	return value, ok
}

// Len reports the number of pairs.
func (m *EnvironmentMap) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *EnvironmentMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// SortedKeys returns the keys in lexical order.
func (m *EnvironmentMap) SortedKeys() []string {
	out := m.Keys()
	sort.Strings(out)
	return out
}

// ParseEnvironment reads NAME=value pairs from r. Both plain assignment lines
// and `export NAME='value'` shell lines are accepted, as is a single JSON
// object. Malformed lines are logged and skipped rather than failing the
// whole capture.
func ParseEnvironment(r io.Reader, logger *slog.Logger) (*EnvironmentMap, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read environment input: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return parseEnvironmentJSON(trimmed)
	}

	env := NewEnvironmentMap()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			logger.Warn("skipping malformed environment line",
				logging.String(logging.FieldComponent, "output"),
				logging.Int("line", lineNo),
			)
			continue
		}
		env.Set(key, unquoteShell(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan environment input: %w", err)
	}
	return env, nil
}

func parseEnvironmentJSON(data []byte) (*EnvironmentMap, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse environment JSON: %w", err)
	}
	env := NewEnvironmentMap()
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env.Set(key, raw[key])
	}
	return env, nil
}

// unquoteShell strips single quoting as produced by shellQuote, so shell
// export output parses back to the original values.
func unquoteShell(value string) string {
	if len(value) < 2 || value[0] != '\'' || value[len(value)-1] != '\'' {
		return value
	}
	inner := value[1 : len(value)-1]
	return strings.ReplaceAll(inner, `'\''`, `'`)
}
