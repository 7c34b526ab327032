package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"nixgen/internal/closure"
	"nixgen/internal/services"
)

// Mode selects an output rendering.
type Mode string

const (
	// ModeHuman renders aligned tables for terminals.
	ModeHuman Mode = "human"
	// ModeShellExport renders `export NAME='value'` lines in insertion order.
	ModeShellExport Mode = "shell"
	// ModeJSON renders a JSON document with lexically sorted keys.
	ModeJSON Mode = "json"
	// ModeFileLines renders plain NAME=value lines.
	ModeFileLines Mode = "file"
)

var titleCaser = cases.Title(language.English)

// WriteEnvironment renders the environment map to w in the given mode.
func (m *EnvironmentMap) WriteEnvironment(w io.Writer, mode Mode) error {
	var err error
	switch mode {
	case ModeShellExport:
		for _, key := range m.Keys() {
			value, _ := m.Get(key)
			if _, werr := fmt.Fprintf(w, "export %s=%s\n", key, shellQuote(value)); werr != nil {
				err = werr
				break
			}
		}
	case ModeJSON:
		flat := make(map[string]string, m.Len())
		for _, key := range m.Keys() {
			flat[key], _ = m.Get(key)
		}
		// encoding/json emits object keys in sorted order.
		data, merr := json.MarshalIndent(flat, "", "  ")
		if merr != nil {
			return services.Wrap(services.ErrWriteOutput, "output", "environment", "encode JSON", merr)
		}
		_, err = fmt.Fprintln(w, string(data))
	case ModeFileLines:
		for _, key := range m.Keys() {
			value, _ := m.Get(key)
			if _, werr := fmt.Fprintf(w, "%s=%s\n", key, value); werr != nil {
				err = werr
				break
			}
		}
	default:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Name", "Value"})
		for _, key := range m.Keys() {
			value, _ := m.Get(key)
			t.AppendRow(table.Row{key, value})
		}
		t.Render()
	}
	if err != nil {
		return services.Wrap(services.ErrWriteOutput, "output", "environment", "write output", err)
	}
	return nil
}

// WriteEnvironmentFile writes the rendering to path. Flush and close errors
// surface as write failures, so a full disk is never reported as success.
func (m *EnvironmentMap) WriteEnvironmentFile(path string, mode Mode) (err error) {
	f, createErr := os.Create(path)
	if createErr != nil {
		return services.Wrap(services.ErrWriteOutput, "output", "environment", "create "+path, createErr)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = services.Wrap(services.ErrWriteOutput, "output", "environment", "close "+path, closeErr)
		}
	}()

	buf := bufio.NewWriter(f)
	if werr := m.WriteEnvironment(buf, mode); werr != nil {
		return werr
	}
	if ferr := buf.Flush(); ferr != nil {
		return services.Wrap(services.ErrWriteOutput, "output", "environment", "flush "+path, ferr)
	}
	return nil
}

var kindGlyphs = map[closure.Kind]string{
	closure.KindAdded:      "+",
	closure.KindRemoved:    "-",
	closure.KindUpgraded:   "^",
	closure.KindDowngraded: "v",
	closure.KindChanged:    "~",
	closure.KindUnchanged:  "=",
}

// WriteDiff renders closure diff entries to w. The human view hides
// unchanged components; JSON carries every entry.
func WriteDiff(w io.Writer, entries []closure.Entry, mode Mode) error {
	if mode == ModeJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return services.Wrap(services.ErrWriteOutput, "output", "diff", "encode JSON", err)
		}
		if _, err := fmt.Fprintln(w, string(data)); err != nil {
			return services.Wrap(services.ErrWriteOutput, "output", "diff", "write output", err)
		}
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"", "Name", "Change", "Old", "New"})
	visible := 0
	for _, entry := range entries {
		if entry.Kind == closure.KindUnchanged {
			continue
		}
		visible++
		t.AppendRow(table.Row{
			kindGlyphs[entry.Kind],
			entry.Name,
			KindLabel(entry.Kind),
			entry.OldVersion,
			entry.NewVersion,
		})
	}
	if visible == 0 {
		if _, err := fmt.Fprintln(w, "No changes."); err != nil {
			return services.Wrap(services.ErrWriteOutput, "output", "diff", "write output", err)
		}
		return nil
	}
	t.Render()
	return nil
}

// KindLabel renders a change kind as a display label.
func KindLabel(kind closure.Kind) string {
	return titleCaser.String(strings.ReplaceAll(string(kind), "_", " "))
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
