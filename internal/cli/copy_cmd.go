package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
	"github.com/APTlantis/pdb-sync/internal/report"
)

func (a *app) newCopyCmd() *cobra.Command {
	var (
		dest          string
		formatArg     string
		keepStructure bool
		symlink       bool
	)
	cmd := &cobra.Command{
		Use:   "copy <ids...> --dest <dir>",
		Short: "Copy entries out of the local mirror",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" {
				return cmdErrorf(pdberr.InvalidInput, "--dest is required")
			}
			f, ok := parseFileFormat(formatArg, a.cfg.Sync.Format)
			if !ok {
				return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", formatArg)
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return pdberr.Wrap(pdberr.Io, "create --dest", err)
			}

			rows := make([]report.Row, 0, len(args))
			for _, raw := range args {
				id, err := pdbid.New(raw)
				if err != nil {
					return err
				}
				rel := pdbid.BuildRelativePath(id, f)
				src := filepath.Join(a.cfg.Paths.BaseDir, rel)

				var dst string
				if keepStructure {
					dst = filepath.Join(dest, rel)
					if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
						return pdberr.Wrap(pdberr.Io, "create dest subdir", err)
					}
				} else {
					dst = filepath.Join(dest, filepath.Base(src))
				}

				status := "copied"
				if err := copyOrLink(src, dst, symlink); err != nil {
					status = "failed: " + err.Error()
				}
				rows = append(rows, report.Row{"id": id.String(), "status": status, "dest": dst})
			}
			return report.WriteText(cmd.OutOrStdout(), []string{"id", "status", "dest"}, rows)
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "destination directory (required)")
	cmd.Flags().StringVar(&formatArg, "format", "", "file format: pdb|mmcif|bcif")
	cmd.Flags().BoolVar(&keepStructure, "keep-structure", false, "preserve the divided-archive subdirectory layout under --dest")
	cmd.Flags().BoolVar(&symlink, "symlink", false, "symlink instead of copying bytes")
	return cmd
}

func copyOrLink(src, dst string, symlink bool) error {
	if symlink {
		abs, err := filepath.Abs(src)
		if err != nil {
			return err
		}
		_ = os.Remove(dst)
		return os.Symlink(abs, dst)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
