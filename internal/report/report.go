// Package report renders list/find/stats/tree/validate/update results as
// text, JSON, or CSV. Color/TTY-aware text output uses
// github.com/fatih/color gated by github.com/mattn/go-isatty and the
// the NO_COLOR convention.
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Format selects the output renderer.
type Format int

const (
	Text Format = iota
	JSON
	CSV
)

// ParseFormat resolves a --format flag value.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "", "text":
		return Text, true
	case "json":
		return JSON, true
	case "csv":
		return CSV, true
	default:
		return 0, false
	}
}

// ColorEnabled reports whether w is a TTY and NO_COLOR is unset.
func ColorEnabled(w *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())
}

// InitColors toggles the global fatih/color switch. The CLI does not call
// it, so fatih/color's own NO_COLOR and TTY detection decides.
func InitColors(enabled bool) {
	color.NoColor = !enabled
}

// Row is one record in a tabular report (list/find/validate/update output).
type Row map[string]string

// WriteJSON marshals rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteCSV renders rows as RFC 4180 CSV with a header row drawn from
// columns, in the given order.
func WriteCSV(w io.Writer, columns []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, len(columns))
		for i, c := range columns {
			rec[i] = r[c]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Colorizer picks the color function for a status string ("ok"/"up_to_date"/
// "success" in green, "outdated"/"warning"/"skipped" in yellow,
// "failed"/"error"/"missing" in red, everything else unstyled).
func Colorizer(status string) func(format string, a ...any) string {
	switch status {
	case "ok", "up_to_date", "success":
		return color.GreenString
	case "outdated", "warning", "skipped":
		return color.YellowString
	case "failed", "error", "missing":
		return color.RedString
	default:
		return func(format string, a ...any) string { return sprintfPlain(format, a...) }
	}
}

func sprintfPlain(format string, a ...any) string {
	return color.New(color.Reset).Sprintf(format, a...)
}

// WriteText renders rows as a left-aligned, space-padded table with the
// status column (if present) colorized per Colorizer.
func WriteText(w io.Writer, columns []string, rows []Row) error {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, r := range rows {
		for i, c := range columns {
			if l := len(r[c]); l > widths[i] {
				widths[i] = l
			}
		}
	}

	if err := writeTextRow(w, columns, widths, nil); err != nil {
		return err
	}
	for _, r := range rows {
		vals := make([]string, len(columns))
		for i, c := range columns {
			vals[i] = r[c]
		}
		if err := writeTextRow(w, vals, widths, columns); err != nil {
			return err
		}
	}
	return nil
}

// writeTextRow prints one padded row. When columns is non-nil (a data row,
// not the header), the "status" column's cell is colorized per Colorizer.
func writeTextRow(w io.Writer, vals []string, widths []int, columns []string) error {
	for i, v := range vals {
		cell := v
		if columns != nil && i < len(columns) && columns[i] == "status" {
			cell = Colorizer(v)("%s", v)
		}
		pad := widths[i] - len(v)
		if pad < 0 {
			pad = 0
		}
		if _, err := io.WriteString(w, cell+strings.Repeat(" ", pad)+"  "); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// FormatBytes renders a byte count as a human-readable size (matches the
// "KiB"/"MiB" style used elsewhere in stats/tree rendering).
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + "B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return strconv.FormatFloat(float64(n)/float64(div), 'f', 1, 64) + string(units[exp]) + "iB"
}
