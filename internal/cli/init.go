package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
)

// skeletonDepth selects how many layers of the divided archive tree
// ("--depth {0-3 | base|types|layouts|format}") to pre-create, so a first
// sync has less directory-creation overhead.
type skeletonDepth int

const (
	depthBase skeletonDepth = iota
	depthTypes
	depthLayouts
	depthFormat
)

func parseDepth(s string) (skeletonDepth, error) {
	switch strings.ToLower(s) {
	case "", "0", "base":
		return depthBase, nil
	case "1", "types":
		return depthTypes, nil
	case "2", "layouts":
		return depthLayouts, nil
	case "3", "format":
		return depthFormat, nil
	default:
		return 0, cmdErrorf(pdberr.InvalidInput, "invalid --depth: %s", s)
	}
}

var skeletonDataTypes = []pdbformat.DataType{
	pdbformat.Structures,
	pdbformat.Assemblies,
	pdbformat.Biounit,
	pdbformat.StructureFactors,
	pdbformat.NmrChemicalShifts,
	pdbformat.NmrRestraints,
	pdbformat.Obsolete,
}

var skeletonFormats = []pdbformat.FileFormat{pdbformat.Pdb, pdbformat.Mmcif, pdbformat.Bcif}

// buckets enumerates every two-character bucket used by the divided-archive
// layout: every pair of characters from [0-9a-z], covering the second/third
// characters of a classic PDB ID.
func buckets() []string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var out []string
	for _, a := range alphabet {
		for _, b := range alphabet {
			out = append(out, string(a)+string(b))
		}
	}
	return out
}

func (a *app) newInitCmd() *cobra.Command {
	var (
		dir    string
		only   []string
		depth  string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the on-disk directory skeleton for a local mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			base := dir
			if base == "" {
				base = a.cfg.Paths.BaseDir
			}
			d, err := parseDepth(depth)
			if err != nil {
				return err
			}
			dirs := buildSkeleton(base, d, only)
			for _, path := range dirs {
				if dryRun {
					fmt.Fprintln(cmd.OutOrStdout(), path)
					continue
				}
				if err := os.MkdirAll(path, 0o755); err != nil {
					return pdberr.Wrap(pdberr.Io, "create "+path, err)
				}
			}
			if !dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "created %d directories under %s\n", len(dirs), base)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "base directory to initialize (default: configured pdb-dir)")
	cmd.Flags().StringSliceVar(&only, "only", nil, "restrict to these data type names (default: all)")
	cmd.Flags().StringVar(&depth, "depth", "types", "skeleton depth: 0-3 or base|types|layouts|format")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the directories that would be created")
	return cmd
}

func buildSkeleton(base string, depth skeletonDepth, only []string) []string {
	dirs := []string{base}
	if depth == depthBase {
		return dirs
	}

	wanted := make(map[string]bool, len(only))
	for _, o := range only {
		wanted[strings.ToLower(o)] = true
	}

	for _, dt := range skeletonDataTypes {
		if len(wanted) > 0 && !wanted[dt.String()] {
			continue
		}
		if dt != pdbformat.Structures {
			dirs = append(dirs, filepath.Join(base, strings.Split(dt.RsyncSubpath(pdbformat.Mmcif), "/")[0]))
			continue
		}
		if depth == depthTypes {
			dirs = append(dirs, filepath.Join(base, "data", "structures", "divided"))
			continue
		}
		for _, f := range skeletonFormats {
			layoutDir := filepath.Join(base, f.Subdir())
			dirs = append(dirs, layoutDir)
			if depth < depthFormat {
				continue
			}
			for _, bucket := range buckets() {
				dirs = append(dirs, filepath.Join(layoutDir, bucket))
			}
		}
	}
	return dirs
}
