package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/report"
	"github.com/APTlantis/pdb-sync/internal/scan"
)

func (a *app) newListCmd() *cobra.Command {
	var (
		formatArg string
		showSize  bool
		showTime  bool
		outputArg string
		showStats bool
		sortArg   string
		reverse   bool
	)
	cmd := &cobra.Command{
		Use:   "list [pattern]",
		Short: "Enumerate local files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := scan.Walk(a.cfg.Paths.BaseDir)
			if err != nil {
				return err
			}

			var patterns []string
			if len(args) == 1 {
				patterns = []string{args[0]}
			}
			var formatFilter *pdbformat.FileFormat
			if formatArg != "" {
				f, ok := parseFileFormat(formatArg, "")
				if !ok {
					return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", formatArg)
				}
				formatFilter = &f
			}
			matched := scan.Match(entries, patterns, formatFilter)
			scan.Sort(matched, parseSortKey(sortArg), reverse)

			if showStats {
				s := scan.Summarize(matched, true)
				fmt.Fprintf(cmd.OutOrStdout(), "total=%d unique=%d size=%s\n", s.TotalCount, s.UniqueIDs, report.FormatBytes(s.TotalSize))
				return nil
			}

			if outputArg == "ids" {
				for _, e := range matched {
					if e.HasID {
						fmt.Fprintln(cmd.OutOrStdout(), e.ID.String())
					}
				}
				return nil
			}
			format, ok := report.ParseFormat(outputArg)
			if !ok {
				return cmdErrorf(pdberr.InvalidInput, "unknown --output: %s", outputArg)
			}
			return writeEntries(cmd, format, matched, showSize, showTime)
		},
	}
	cmd.Flags().StringVar(&formatArg, "format", "", "restrict to file format: pdb|mmcif|bcif")
	cmd.Flags().BoolVar(&showSize, "size", false, "include file size column")
	cmd.Flags().BoolVar(&showTime, "time", false, "include modification time column")
	cmd.Flags().StringVar(&outputArg, "output", "text", "output format: text|json|csv|ids")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print summary counts instead of a listing")
	cmd.Flags().StringVar(&sortArg, "sort", "name", "sort key: name|size|time")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "reverse sort order")
	return cmd
}

func parseSortKey(s string) scan.SortKey {
	switch s {
	case "size":
		return scan.SortBySize
	case "time":
		return scan.SortByTime
	default:
		return scan.SortByName
	}
}

func writeEntries(cmd *cobra.Command, format report.Format, entries []scan.Entry, showSize, showTime bool) error {
	columns := []string{"id", "format", "path"}
	if showSize {
		columns = append(columns, "size")
	}
	if showTime {
		columns = append(columns, "modified")
	}

	rows := make([]report.Row, 0, len(entries))
	for _, e := range entries {
		idStr := ""
		if e.HasID {
			idStr = e.ID.String()
		}
		row := report.Row{"id": idStr, "format": e.Format.String(), "path": e.Path}
		if showSize {
			row["size"] = report.FormatBytes(e.Size)
		}
		if showTime {
			row["modified"] = e.ModTime.Format("2006-01-02T15:04:05Z07:00")
		}
		rows = append(rows, row)
	}
	switch format {
	case report.JSON:
		return report.WriteJSON(cmd.OutOrStdout(), rows)
	case report.CSV:
		return report.WriteCSV(cmd.OutOrStdout(), columns, rows)
	default:
		return report.WriteText(cmd.OutOrStdout(), columns, rows)
	}
}
