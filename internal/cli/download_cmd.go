package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/download"
	"github.com/APTlantis/pdb-sync/internal/history"
	"github.com/APTlantis/pdb-sync/internal/job"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
	"github.com/APTlantis/pdb-sync/internal/report"
)

// parseDataType maps the --type flag's string values to the archive's
// DataType enum.
func parseDataType(s string) (pdbformat.DataType, bool) {
	switch s {
	case "structures", "":
		return pdbformat.Structures, true
	case "assemblies":
		return pdbformat.Assemblies, true
	case "biounit":
		return pdbformat.Biounit, true
	case "structure_factors":
		return pdbformat.StructureFactors, true
	case "nmr_chemical_shifts":
		return pdbformat.NmrChemicalShifts, true
	case "nmr_restraints":
		return pdbformat.NmrRestraints, true
	case "obsolete":
		return pdbformat.Obsolete, true
	default:
		return 0, false
	}
}

// relativeDownloadPath mirrors pdbid.BuildRelativePath but routes through
// DataType.RsyncSubpath/FilenamePattern instead of the Structures-only
// divided layout, so non-structure data types land in their own archive
// section.
func relativeDownloadPath(id pdbid.ID, dt pdbformat.DataType, f pdbformat.FileFormat, assembly int) string {
	if dt == pdbformat.Structures {
		return pdbid.BuildRelativePath(id, f)
	}
	name := dt.FilenamePattern(id.String(), f, assembly)
	return dt.RsyncSubpath(f) + "/" + id.MiddleChars() + "/" + name
}

func (a *app) newDownloadCmd() *cobra.Command {
	var (
		mirrorArg  string
		dataType   string
		formatArg  string
		assembly   int
		parallel   int
		retry      int
		decompress bool
		overwrite  bool
		engine     string
		bg         bool
		listPath   string
		stdinMode  bool
	)
	cmd := &cobra.Command{
		Use:   "download <ids...>",
		Short: "Parallel HTTPS fetch of one or more entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bg && a.jobID == "" {
				return a.spawnBackground(cmd, "download")
			}

			ids, err := collectIDs(args, listPath, stdinMode)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return cmdErrorf(pdberr.InvalidInput, "no ids given (pass args, --list, or --stdin)")
			}

			m, err := a.resolveMirror(mirrorArg)
			if err != nil {
				return err
			}
			f, ok := parseFileFormat(formatArg, a.cfg.Sync.Format)
			if !ok {
				return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", formatArg)
			}
			dt, ok := parseDataType(dataType)
			if !ok {
				if mismatchErr := pdbformat.ValidateDataTypeMirror(dataType, m.ID.String()); mismatchErr != nil {
					return mismatchErr
				}
				return cmdErrorf(pdberr.InvalidInput, "unknown data type: %s", dataType)
			}

			tasks := make([]download.Task, 0, len(ids))
			for _, idStr := range ids {
				id, err := pdbid.New(idStr)
				if err != nil {
					return err
				}
				dest := filepath.Join(a.cfg.Paths.BaseDir, relativeDownloadPath(id, dt, f, assembly))
				tasks = append(tasks, download.Task{
					ID: id, Mirror: m, Format: f, DataType: dt, AssemblyNumber: assembly,
					Dest: dest, Decompress: decompress, Overwrite: overwrite,
				})
			}

			effParallel := resolveParallel(parallel, a.cfg.Download.Parallel)
			effEngine := engine
			if effEngine == "" {
				effEngine = a.cfg.Download.Engine
			}

			var results []download.Result
			if effEngine == "aria2c" {
				if err := download.CheckAria2Available(); err != nil {
					return err
				}
				results, err = download.DownloadManyAria2(cmd.Context(), tasks, download.Aria2Options{Parallel: effParallel})
				if err != nil {
					return err
				}
			} else {
				d := download.New(effParallel, 60*time.Second)
				d.SetRetries(resolveRetry(retry, a.cfg.Download.Retry))
				results = d.DownloadMany(cmd.Context(), tasks)
			}

			printDownloadResults(cmd, results)
			if err := history.RecordDownload(history.DefaultPath(cacheDir()), nowUTC()); err != nil {
				return err
			}
			if a.jobID != "" {
				return finalizeJob(a.jobID, countFailures(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mirrorArg, "mirror", "", "mirror id or profile name")
	cmd.Flags().StringVar(&dataType, "type", "structures", "data type to fetch")
	cmd.Flags().StringVar(&formatArg, "format", "", "file format: pdb|mmcif|bcif")
	cmd.Flags().IntVar(&assembly, "assembly", 0, "assembly number (assemblies/biounit only; 0 = all)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent downloads (default: config download.parallel)")
	cmd.Flags().IntVar(&retry, "retry", 0, "retry attempts per file (default: config download.retry)")
	cmd.Flags().BoolVar(&decompress, "decompress", true, "gunzip after a successful compressed fetch")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing files")
	cmd.Flags().StringVar(&engine, "engine", "", "download engine: internal|aria2c (default: config download.engine)")
	cmd.Flags().BoolVar(&bg, "bg", false, "run as a detached background job")
	cmd.Flags().StringVar(&listPath, "list", "", "read ids from this newline-delimited file")
	cmd.Flags().BoolVar(&stdinMode, "stdin", false, "read ids from stdin, one per line")
	return cmd
}

func countFailures(results []download.Result) int {
	n := 0
	for _, r := range results {
		if r.Status == download.StatusFailed {
			n++
		}
	}
	return n
}

func printDownloadResults(cmd *cobra.Command, results []download.Result) {
	rows := make([]report.Row, len(results))
	for i, r := range results {
		rows[i] = report.Row{
			"id":     r.Task.ID.String(),
			"status": r.Status.String(),
			"path":   r.Path,
			"size":   report.FormatBytes(r.Size),
		}
	}
	_ = report.WriteText(cmd.OutOrStdout(), []string{"id", "status", "path", "size"}, rows)
}

// collectIDs merges positional args with --list/--stdin sources, in that
// order, deduplicating nothing: callers see every occurrence, so
// operations apply in the order given.
func collectIDs(args []string, listPath string, stdinMode bool) ([]string, error) {
	ids := append([]string{}, args...)
	if listPath != "" {
		f, err := os.Open(listPath)
		if err != nil {
			return nil, pdberr.Wrap(pdberr.Io, "open --list file", err)
		}
		defer f.Close()
		ids = append(ids, readLines(f)...)
	}
	if stdinMode {
		ids = append(ids, readLines(os.Stdin)...)
	}
	return ids, nil
}

func readLines(r *os.File) []string {
	var out []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// spawnBackground re-execs the current process via the job supervisor with
// --bg stripped, used by any long-running command that accepts it.
func (a *app) spawnBackground(cmd *cobra.Command, label string) error {
	mgr, err := job.NewManager(cacheDir())
	if err != nil {
		return err
	}
	id, _, err := mgr.SpawnBackground(os.Args[1:])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "started %s job %s\n", label, id)
	return nil
}

func finalizeJob(jobID string, failures int) error {
	mgr, err := job.NewManager(cacheDir())
	if err != nil {
		return err
	}
	exitCode := 0
	if failures > 0 {
		exitCode = 1
	}
	return mgr.Finalize(jobID, exitCode)
}

// cacheDir returns "<user_cache>/pdb-cli", the root for job directories and
// history.json.
func cacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "pdb-cli-cache"
	}
	return filepath.Join(dir, "pdb-cli")
}

// watchCacheDir returns "<user_cache>/pdb-sync", the root for watch_state.json.
// Kept distinct from cacheDir per the persisted-state layout: the watcher's
// state predates the "pdb-cli" rename and keeps its original namespace.
func watchCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "pdb-sync-cache"
	}
	return filepath.Join(dir, "pdb-sync")
}
