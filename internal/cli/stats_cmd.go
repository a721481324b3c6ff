package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/history"
	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/report"
	"github.com/APTlantis/pdb-sync/internal/scan"
)

func (a *app) newStatsCmd() *cobra.Command {
	var (
		detailed      bool
		compareRemote bool
		formatArg     string
		typeArg       string
		outputArg     string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Local and remote mirror statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := scan.Walk(a.cfg.Paths.BaseDir)
			if err != nil {
				return err
			}
			if formatArg != "" {
				f, ok := parseFileFormat(formatArg, "")
				if !ok {
					return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", formatArg)
				}
				entries = scan.Match(entries, nil, &f)
			}
			_ = typeArg // --type is accepted but not applied: every scanned file is counted

			s := scan.Summarize(entries, detailed)

			format, ok := report.ParseFormat(outputArg)
			if !ok {
				return cmdErrorf(pdberr.InvalidInput, "unknown --output: %s", outputArg)
			}

			rows := []report.Row{
				{"metric": "total_count", "value": fmt.Sprintf("%d", s.TotalCount)},
				{"metric": "unique_ids", "value": fmt.Sprintf("%d", s.UniqueIDs)},
				{"metric": "total_size", "value": report.FormatBytes(s.TotalSize)},
			}
			for name, count := range s.ByFormat {
				rows = append(rows, report.Row{"metric": "format:" + name, "value": fmt.Sprintf("%d", count)})
			}
			if h, err := history.Load(history.DefaultPath(cacheDir())); err == nil {
				if h.LastSync != nil {
					rows = append(rows, report.Row{"metric": "last_sync", "value": h.LastSync.Format(time.RFC3339)})
				}
				if h.LastDownload != nil {
					rows = append(rows, report.Row{"metric": "last_download", "value": h.LastDownload.Format(time.RFC3339)})
				}
			}
			if detailed {
				for bucket, count := range s.SizeHistogram {
					rows = append(rows, report.Row{"metric": "size_bucket:" + bucket, "value": fmt.Sprintf("%d", count)})
				}
				if s.Oldest != nil {
					rows = append(rows, report.Row{"metric": "oldest", "value": s.Oldest.Path})
				}
				if s.Newest != nil {
					rows = append(rows, report.Row{"metric": "newest", "value": s.Newest.Path})
				}
				if s.Largest != nil {
					rows = append(rows, report.Row{"metric": "largest", "value": s.Largest.Path})
				}
				if s.Smallest != nil {
					rows = append(rows, report.Row{"metric": "smallest", "value": s.Smallest.Path})
				}
			}
			if compareRemote {
				m, err := a.resolveMirror("")
				if err != nil {
					return err
				}
				rows = append(rows, report.Row{"metric": "mirror_reachable", "value": fmt.Sprintf("%v", mirrorReachable(cmd.Context(), m))})
			}

			columns := []string{"metric", "value"}
			switch format {
			case report.JSON:
				return report.WriteJSON(cmd.OutOrStdout(), rows)
			case report.CSV:
				return report.WriteCSV(cmd.OutOrStdout(), columns, rows)
			default:
				return report.WriteText(cmd.OutOrStdout(), columns, rows)
			}
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include histogram and oldest/newest/largest/smallest")
	cmd.Flags().BoolVar(&compareRemote, "compare-remote", false, "probe the configured mirror for reachability")
	cmd.Flags().StringVar(&formatArg, "format", "", "restrict to file format: pdb|mmcif|bcif")
	cmd.Flags().StringVar(&typeArg, "type", "", "data type (accepted but not applied; all files are counted)")
	cmd.Flags().StringVar(&outputArg, "output", "text", "output format: text|json|csv")
	return cmd
}

func mirrorReachable(ctx context.Context, m mirror.Mirror) bool {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.HTTPSURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
