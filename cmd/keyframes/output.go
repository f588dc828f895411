package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// writeJSON prints v as indented JSON. HTML escaping is off so keyframe URLs
// (which carry "?path=" and "&") print exactly as they will be requested.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

type column struct {
	Title string
	Right bool
}

// renderTable draws rows under the given columns. Short rows are padded and
// an optional footer is printed beneath the body.
func renderTable(columns []column, rows [][]string, footer ...string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	tw.AppendHeader(toRow(columns, func(i int) string { return columns[i].Title }))
	for _, row := range rows {
		tw.AppendRow(toRow(columns, func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(columns, func(i int) string {
			if i < len(footer) {
				return footer[i]
			}
			return ""
		}))
	}

	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		align := text.AlignLeft
		if c.Right {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignFooter: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}

func toRow(columns []column, cell func(i int) string) table.Row {
	row := make(table.Row, len(columns))
	for i := range columns {
		row[i] = cell(i)
	}
	return row
}

func formatAge(d time.Duration) string {
	d = d.Truncate(time.Minute)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
