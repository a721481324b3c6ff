package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
	"github.com/APTlantis/pdb-sync/internal/report"
)

func idKindString(id pdbid.ID) string {
	if id.Kind() == pdbid.Extended {
		return "extended"
	}
	return "classic"
}

func (a *app) newInfoCmd() *cobra.Command {
	var (
		localOnly bool
		outputArg string
		allFmts   bool
	)
	cmd := &cobra.Command{
		Use:   "info <id>",
		Short: "Metadata from the local mirror, or remote reachability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := pdbid.New(args[0])
			if err != nil {
				return err
			}

			formats := []pdbformat.FileFormat{pdbformat.Mmcif}
			if allFmts {
				formats = []pdbformat.FileFormat{pdbformat.Pdb, pdbformat.Mmcif, pdbformat.Bcif}
			}

			rows := make([]report.Row, 0, len(formats))
			var m interface {
				StructureURL(f pdbformat.FileFormat, id pdbid.ID) string
			}
			if !localOnly {
				mm, err := a.resolveMirror("")
				if err != nil {
					return err
				}
				m = mm
			}
			client := &http.Client{Timeout: 10 * time.Second}

			for _, f := range formats {
				row := report.Row{"id": id.String(), "kind": idKindString(id), "middle_chars": id.MiddleChars(), "format": f.String()}
				localPath := filepath.Join(a.cfg.Paths.BaseDir, pdbid.BuildRelativePath(id, f))
				if fi, err := os.Stat(localPath); err == nil {
					row["local"] = "present"
					row["path"] = localPath
					row["size"] = report.FormatBytes(fi.Size())
					row["modified"] = fi.ModTime().Format(time.RFC3339)
				} else {
					row["local"] = "missing"
				}
				if !localOnly {
					row["remote"] = remoteStatus(cmd.Context(), client, m, f, id)
				}
				rows = append(rows, row)
			}

			format, ok := report.ParseFormat(outputArg)
			if !ok {
				return cmdErrorf(pdberr.InvalidInput, "unknown --output: %s", outputArg)
			}
			columns := []string{"id", "kind", "middle_chars", "format", "local", "path", "size", "modified"}
			if !localOnly {
				columns = append(columns, "remote")
			}
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
	cmd.Flags().BoolVar(&localOnly, "local", false, "skip the remote reachability probe")
	cmd.Flags().StringVar(&outputArg, "output", "text", "output format: text|json|csv")
	cmd.Flags().BoolVar(&allFmts, "all", false, "report on every file format, not just mmCIF")
	return cmd
}

func remoteStatus(ctx context.Context, client *http.Client, m interface {
	StructureURL(f pdbformat.FileFormat, id pdbid.ID) string
}, f pdbformat.FileFormat, id pdbid.ID) string {
	url := m.StructureURL(f, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "error: " + err.Error()
	}
	resp, err := client.Do(req)
	if err != nil {
		return "error: " + err.Error()
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return "present"
	}
	if resp.StatusCode == http.StatusNotFound {
		return "missing"
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
