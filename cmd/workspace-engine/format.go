package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// isTerminal reports whether stdout is an interactive terminal, used to
// decide between human-readable table output and machine-readable output
// when --json wasn't given explicitly.
func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// formatSize returns a human-readable byte size in binary units (e.g.
// "1.2 MiB").
func formatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}

// formatTime returns a relative, human-readable timestamp (e.g. "3 hours
// ago") for timestamps stored as RFC3339 strings.
func formatTime(raw string) string {
	if raw == "" {
		return "never"
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}

	return humanize.Time(t)
}

// printTable writes aligned columns to w. When stdout isn't an interactive
// terminal (piped into another command), columns are tab-separated instead
// of space-padded, since padding only helps a human reader.
func printTable(w io.Writer, headers []string, rows [][]string) {
	if !isTerminal() {
		printTableTabs(w, headers, rows)
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)
	for _, row := range rows {
		printRow(w, row, widths)
	}
}

func printTableTabs(w io.Writer, headers []string, rows [][]string) {
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}

func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}
