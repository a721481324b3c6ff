package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/checksum"
	"github.com/APTlantis/pdb-sync/internal/download"
	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/report"
	"github.com/APTlantis/pdb-sync/internal/scan"
)

func (a *app) newValidateCmd() *cobra.Command {
	var (
		fix        bool
		errorsOnly bool
		formatArg  string
		outputArg  string
	)
	cmd := &cobra.Command{
		Use:   "validate [ids...]",
		Short: "Checksum verify local files",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := scan.Walk(a.cfg.Paths.BaseDir)
			if err != nil {
				return err
			}
			f, ok := parseFileFormat(formatArg, a.cfg.Sync.Format)
			if !ok {
				return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", formatArg)
			}
			matched := filterByIDs(entries, args)

			m, err := a.resolveMirror("")
			if err != nil {
				return err
			}
			cache := checksum.NewCache(&http.Client{Timeout: 30 * time.Second})

			var verifyResults []checksum.Result
			bySub := map[string][]string{}
			for _, e := range matched {
				if e.Format.BaseFormat() != f.BaseFormat() {
					continue
				}
				sub := f.Subdir() + "/" + e.ID.MiddleChars()
				bySub[sub] = append(bySub[sub], e.Path)
			}
			for sub, group := range bySub {
				table, err := cache.Fetch(cmd.Context(), m.ChecksumsURL(sub))
				if err != nil {
					for _, p := range group {
						verifyResults = append(verifyResults, checksum.Result{Path: p, Err: err})
					}
					continue
				}
				for _, p := range group {
					sum, ok := checksum.LookupEntry(table, p)
					if !ok {
						verifyResults = append(verifyResults, checksum.Result{Path: p, Missing: true})
						continue
					}
					verifyResults = append(verifyResults, checksum.VerifyFile(p, sum))
				}
			}

			if fix {
				var badPaths []string
				for _, r := range verifyResults {
					if !r.OK {
						badPaths = append(badPaths, r.Path)
					}
				}
				if len(badPaths) > 0 {
					d := download.New(a.cfg.Download.Parallel, 60*time.Second)
					tasks := buildFixTasks(badPaths, matched, m, f)
					_ = d.DownloadMany(cmd.Context(), tasks)
				}
			}

			return writeValidateResults(cmd, outputArg, verifyResults, errorsOnly)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "re-download entries that fail verification")
	cmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "print only failing entries")
	cmd.Flags().StringVar(&formatArg, "format", "", "file format: pdb|mmcif|bcif")
	cmd.Flags().StringVar(&outputArg, "output", "text", "output format: text|json|csv")
	return cmd
}

// buildFixTasks resolves each failing path back to its scanned Entry so the
// re-download overwrites the exact same destination.
func buildFixTasks(badPaths []string, entries []scan.Entry, m mirror.Mirror, f pdbformat.FileFormat) []download.Task {
	byPath := map[string]scan.Entry{}
	for _, e := range entries {
		byPath[e.Path] = e
	}
	tasks := make([]download.Task, 0, len(badPaths))
	for _, p := range badPaths {
		e, ok := byPath[p]
		if !ok || !e.HasID {
			continue
		}
		tasks = append(tasks, download.Task{
			ID: e.ID, Mirror: m, Format: f, Dest: p,
			Overwrite: true, Decompress: false,
		})
	}
	return tasks
}

func writeValidateResults(cmd *cobra.Command, outputArg string, results []checksum.Result, errorsOnly bool) error {
	format, ok := report.ParseFormat(outputArg)
	if !ok {
		return cmdErrorf(pdberr.InvalidInput, "unknown --output: %s", outputArg)
	}
	columns := []string{"path", "status"}
	var rows []report.Row
	for _, r := range results {
		status := "valid"
		switch {
		case r.Missing:
			status = "no_checksum"
		case r.Err != nil:
			status = "error: " + r.Err.Error()
		case !r.OK:
			status = "invalid"
		}
		if errorsOnly && status == "valid" {
			continue
		}
		rows = append(rows, report.Row{"path": r.Path, "status": status})
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
