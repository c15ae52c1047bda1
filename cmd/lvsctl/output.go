package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

const (
	outputFormatTable = "table"
	outputFormatYAML  = "yaml"
	outputFormatJSON  = "json"
)

var errUnknownOutputFormat = errors.New("lvsctl: unknown output format")

// newStyledTable returns a table.Writer preconfigured with the box style
// and column separators every lvsctl list command renders with.
func newStyledTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func renderTable(t table.Writer) {
	t.Render()
}

// renderRows dispatches rows to the requested output format. rows must
// already be the slice of structs to marshal for yaml/json; header and
// appendRow build the table.Writer representation for table mode.
func renderRows(format string, rows any, header table.Row, appendRow func(t table.Writer), empty string) error {
	switch format {
	case outputFormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case outputFormatYAML:
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		return enc.Encode(rows)

	case outputFormatTable, "":
		t := newStyledTable()
		appendRow(t)
		if t.Length() == 0 {
			fmt.Println(empty)
			return nil
		}
		t.AppendHeader(header)
		renderTable(t)
		return nil

	default:
		return fmt.Errorf("%w: %s", errUnknownOutputFormat, format)
	}
}

// formatBytes renders n as a human-readable binary size, matching the
// teacher CLI's byte-formatting convention.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for nb := n / unit; nb >= unit; nb /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
