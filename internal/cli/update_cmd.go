package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/checksum"
	"github.com/APTlantis/pdb-sync/internal/download"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
	"github.com/APTlantis/pdb-sync/internal/report"
	"github.com/APTlantis/pdb-sync/internal/scan"
	"github.com/APTlantis/pdb-sync/internal/update"
)

func (a *app) newUpdateCmd() *cobra.Command {
	var (
		checkOnly bool
		verify    bool
		force     bool
		parallel  int
		outputArg string
	)
	cmd := &cobra.Command{
		Use:   "update [ids...]",
		Short: "Detect and fetch outdated entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := scan.Walk(a.cfg.Paths.BaseDir)
			if err != nil {
				return err
			}
			f, ok := parseFileFormat("", a.cfg.Sync.Format)
			if !ok {
				return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", a.cfg.Sync.Format)
			}
			matched := filterByIDs(entries, args)

			m, err := a.resolveMirror("")
			if err != nil {
				return err
			}
			upEntries := make([]update.Entry, len(matched))
			for i, e := range matched {
				upEntries[i] = update.Entry{ID: e.ID, LocalPath: e.Path}
			}

			var results []update.Result
			if verify {
				cache := checksum.NewCache(&http.Client{Timeout: 30 * time.Second})
				subpathOf := func(e update.Entry) string {
					return f.Subdir() + "/" + e.ID.MiddleChars()
				}
				results = update.CheckManyChecksum(cmd.Context(), cache, m, subpathOf, upEntries)
			} else {
				hc := update.NewHeadChecker(m, resolveParallel(parallel, a.cfg.Download.Parallel), 30*time.Second)
				results = hc.CheckMany(cmd.Context(), upEntries, f)
			}

			if !checkOnly && !force {
				d := download.New(resolveParallel(parallel, a.cfg.Download.Parallel), 60*time.Second)
				results = update.Fix(cmd.Context(), d, m, f, results)
			} else if force {
				d := download.New(resolveParallel(parallel, a.cfg.Download.Parallel), 60*time.Second)
				results = update.Fix(cmd.Context(), d, m, f, forceOutdated(results))
			}

			return writeUpdateResults(cmd, outputArg, results)
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check", false, "report status only, never re-download")
	cmd.Flags().BoolVar(&verify, "verify", false, "use checksum mode instead of HEAD-probe mode")
	cmd.Flags().BoolVar(&force, "force", false, "re-download every matched entry regardless of status")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent checks/downloads (default: config download.parallel)")
	cmd.Flags().StringVar(&outputArg, "output", "text", "output format: text|json|csv")
	return cmd
}

func resolveParallel(flag, cfgVal int) int {
	if flag > 0 {
		return flag
	}
	if cfgVal > 0 {
		return cfgVal
	}
	return 4
}

// resolveRetry prefers an explicit --retry flag over the configured
// download.retry default, falling back to spec §4.3's retry_count=3 when
// neither is set.
func resolveRetry(flag, cfgVal int) int {
	if flag > 0 {
		return flag
	}
	if cfgVal > 0 {
		return cfgVal
	}
	return 3
}

func forceOutdated(results []update.Result) []update.Result {
	out := make([]update.Result, len(results))
	for i, r := range results {
		r.Status = update.Outdated
		out[i] = r
	}
	return out
}

func filterByIDs(entries []scan.Entry, ids []string) []scan.Entry {
	if len(ids) == 0 {
		var out []scan.Entry
		for _, e := range entries {
			if e.HasID {
				out = append(out, e)
			}
		}
		return out
	}
	want := map[string]bool{}
	for _, s := range ids {
		if id, err := pdbid.New(s); err == nil {
			want[id.String()] = true
		}
	}
	var out []scan.Entry
	for _, e := range entries {
		if e.HasID && want[e.ID.String()] {
			out = append(out, e)
		}
	}
	return out
}

func writeUpdateResults(cmd *cobra.Command, outputArg string, results []update.Result) error {
	format, ok := report.ParseFormat(outputArg)
	if !ok {
		return cmdErrorf(pdberr.InvalidInput, "unknown --output: %s", outputArg)
	}
	columns := []string{"id", "status", "reason"}
	rows := make([]report.Row, len(results))
	for i, r := range results {
		rows[i] = report.Row{"id": r.Entry.ID.String(), "status": r.Status.String(), "reason": r.Reason}
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
