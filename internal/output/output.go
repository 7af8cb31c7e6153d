// Package output renders command results as YAML, JSON or a plain table.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
)

// Format is an output format name
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

var (
	ErrUnknownFormat = errors.New("unsupported output format")
	ErrNotTabular    = errors.New("value cannot be rendered as a table")
)

// Tabular is implemented by results that can be printed as a table.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// ParseFormat validates a format name. Empty selects table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatYAML, FormatJSON, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
	}
}

// Write renders v to w in the given format.
func Write(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("format yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatTable, "":
		t, ok := v.(Tabular)
		if !ok {
			return fmt.Errorf("%w: %T", ErrNotTabular, v)
		}
		return writeTable(w, t)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func writeTable(w io.Writer, t Tabular) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if h := t.Header(); len(h) > 0 {
		_, _ = fmt.Fprintln(tw, strings.Join(h, "\t"))
	}
	for _, row := range t.Rows() {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
