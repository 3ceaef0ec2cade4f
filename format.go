package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/healthdrive/healthdrive/internal/report"
)

// statusf writes progress for humans to stderr; --quiet silences it.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}

// printTable writes headers and rows as space-aligned columns. Every row
// must have as many cells as headers.
func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// reportedError renders a domain error the way the MCP tools do while
// keeping the cause available to errors.Is.
type reportedError struct {
	err error
}

func (e reportedError) Error() string {
	return strings.TrimPrefix(report.Failure(e.err), "Error: ")
}

func (e reportedError) Unwrap() error {
	return e.err
}
