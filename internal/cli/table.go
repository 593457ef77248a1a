// Package cli provides table and detail output helpers.
package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	tablePadding = 2

	// cellWidthMax caps free-text columns (descriptions, payloads) so
	// one long value does not blow up every row.
	cellWidthMax = 48
)

// writeTable renders rows as padded columns under an upper-case header.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(out, 0, 0, tablePadding, ' ', 0)
	if len(headers) > 0 {
		fmt.Fprintln(writer, strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = truncateCell(cell, cellWidthMax)
		}
		fmt.Fprintln(writer, strings.Join(cells, "\t"))
	}
	return writer.Flush()
}

// writeKeyValues renders aligned "Key: value" detail lines. Pairs with
// an empty value are skipped.
func writeKeyValues(out io.Writer, pairs [][2]string) error {
	writer := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
	for _, pair := range pairs {
		if pair[1] == "" {
			continue
		}
		fmt.Fprintf(writer, "%s:\t%s\n", pair[0], pair[1])
	}
	return writer.Flush()
}

func truncateCell(cell string, max int) string {
	if max <= 3 {
		return cell
	}
	runes := []rune(cell)
	if len(runes) <= max {
		return cell
	}
	return string(runes[:max-3]) + "..."
}

func formatYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
