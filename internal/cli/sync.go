package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/history"
	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/rsync"
)

func (a *app) newSyncCmd() *cobra.Command {
	var (
		mirrorArg string
		formatArg string
		dataType  string
		delete    bool
		bwlimit   string
		dryRun    bool
		progress  bool
	)
	cmd := &cobra.Command{
		Use:   "sync [preset|wwpdb|pdbj|pdbe]",
		Short: "Invoke rsync against the chosen mirror",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := mirrorArg
			if sel == "" && len(args) == 1 {
				sel = args[0]
			}
			m, err := a.resolveMirror(sel)
			if err != nil {
				return err
			}
			f, ok := parseFileFormat(formatArg, a.cfg.Sync.Format)
			if !ok {
				return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", formatArg)
			}
			dt := pdbformat.Structures
			if dataType != "" && dataType != "structures" {
				if parsed, ok := parseDataType(dataType); ok {
					dt = parsed
				} else if err := pdbformat.ValidateDataTypeMirror(dataType, m.ID.String()); err != nil {
					return err
				}
			}

			opts := rsync.Options{
				Mirror:     m,
				DataType:   dt,
				Format:     f,
				DestDir:    a.cfg.Paths.BaseDir,
				Delete:     delete,
				BwLimitKBs: firstNonEmpty(bwlimit, a.cfg.Sync.BwLimit),
				DryRun:     dryRun,
				Progress:   progress || a.cfg.Sync.Progress,
			}

			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), rsync.CommandString(opts))
				return nil
			}
			if err := rsync.CheckAvailable(); err != nil {
				return err
			}
			if err := rsync.Run(cmd.Context(), opts); err != nil {
				return err
			}
			return history.RecordSync(history.DefaultPath(cacheDir()), nowUTC())
		},
	}
	cmd.Flags().StringVar(&mirrorArg, "mirror", "", "mirror id or profile name")
	cmd.Flags().StringVar(&formatArg, "format", "", "file format: pdb|mmcif|bcif")
	cmd.Flags().StringVar(&dataType, "data-type", "structures", "data type to sync; a mirror-exclusive value must match --mirror and then syncs structures")
	cmd.Flags().BoolVar(&delete, "delete", false, "pass --delete to rsync")
	cmd.Flags().StringVar(&bwlimit, "bwlimit", "", "bandwidth limit in KB/s")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the rsync command instead of running it")
	cmd.Flags().BoolVar(&progress, "progress", false, "show rsync's own progress output")
	return cmd
}

func parseFileFormat(arg, fallback string) (pdbformat.FileFormat, bool) {
	s := arg
	if s == "" {
		s = fallback
	}
	switch s {
	case "pdb":
		return pdbformat.Pdb, true
	case "pdb_gz":
		return pdbformat.PdbGz, true
	case "mmcif", "":
		return pdbformat.Mmcif, true
	case "cif_gz":
		return pdbformat.CifGz, true
	case "bcif":
		return pdbformat.Bcif, true
	case "bcif_gz":
		return pdbformat.BcifGz, true
	default:
		return 0, false
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadProfileMirror resolves a named profile's configured mirror id into a
// registry Mirror, used by resolveMirror when the argument isn't itself one
// of the four built-in mirror ids.
func loadProfileMirror(name string) (mirror.Mirror, error) {
	p, err := profileLoad(name)
	if err != nil {
		return mirror.Mirror{}, err
	}
	id, ok := mirror.Parse(p.Mirror)
	if !ok {
		return mirror.Mirror{}, cmdErrorf(pdberr.InvalidInput, "profile %s has unknown mirror %s", name, p.Mirror)
	}
	return mirror.Get(id), nil
}
