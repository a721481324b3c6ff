package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/download"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/watch"
)

func (a *app) newWatchCmd() *cobra.Command {
	var (
		interval   string
		method     string
		resolution float64
		organism   string
		typeArg    string
		formatArg  string
		notify     bool
		email      string
		onNew      string
		once       bool
		since      string
		dryRun     bool
		bg         bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously monitor the search API for new releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bg && a.jobID == "" {
				return a.spawnBackground(cmd, "watch")
			}

			ivl, err := time.ParseDuration(interval)
			if err != nil {
				return cmdErrorf(pdberr.InvalidInput, "invalid --interval: %v", err)
			}
			if resolution != 0 {
				if err := watch.ValidateResolution(resolution); err != nil {
					return err
				}
			}
			if organism != "" {
				if err := watch.ValidateOrganism(organism); err != nil {
					return err
				}
			}

			f, ok := parseFileFormat(formatArg, a.cfg.Sync.Format)
			if !ok {
				return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", formatArg)
			}
			dataTypes := []pdbformat.DataType{pdbformat.Structures}
			if typeArg != "" {
				dt, ok := parseDataType(typeArg)
				if !ok {
					return cmdErrorf(pdberr.InvalidInput, "unknown data type: %s", typeArg)
				}
				dataTypes = []pdbformat.DataType{dt}
			}

			var sinceT *time.Time
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return cmdErrorf(pdberr.InvalidInput, "invalid --since, want YYYY-MM-DD: %v", err)
				}
				sinceT = &t
			}

			m, err := a.resolveMirror("")
			if err != nil {
				return err
			}

			var notifier watch.Notifier
			if notify {
				notifier = watch.DesktopNotifier{}
			} else if email != "" {
				n, err := watch.NewEmailNotifier(email)
				if err != nil {
					return err
				}
				notifier = n
			}

			opts := watch.Options{
				BaseDir:    a.cfg.Paths.BaseDir,
				Mirror:     m,
				DataTypes:  dataTypes,
				Format:     f,
				Filters:    watch.Filters{Method: method, Resolution: resolution, Organism: organism},
				Since:      sinceT,
				Interval:   ivl,
				DryRun:     dryRun,
				Once:       once,
				HookScript: onNew,
				Notifier:   notifier,
				StatePath:  watch.StatePath(watchCacheDir()),
			}

			search := watch.NewSearchClient(&http.Client{Timeout: 30 * time.Second}, "https://search.rcsb.org")
			d := download.New(a.cfg.Download.Parallel, 60*time.Second)
			w, err := watch.New(opts, search, d)
			if err != nil {
				return err
			}
			err = w.Run(cmd.Context())
			if a.jobID != "" {
				code := 0
				if err != nil {
					code = 1
				}
				return finalizeJob(a.jobID, code)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&interval, "interval", "5m", "polling interval (Go duration syntax)")
	cmd.Flags().StringVar(&method, "method", "", "experimental method filter")
	cmd.Flags().Float64Var(&resolution, "resolution", 0, "resolution threshold in angstrom (<=)")
	cmd.Flags().StringVar(&organism, "organism", "", "organism substring filter")
	cmd.Flags().StringVar(&typeArg, "type", "", "data type to download (default: structures)")
	cmd.Flags().StringVar(&formatArg, "format", "", "file format: pdb|mmcif|bcif")
	cmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification on new downloads")
	cmd.Flags().StringVar(&email, "email", "", "send an email notification to this address on new downloads")
	cmd.Flags().StringVar(&onNew, "on-new", "", "hook script invoked per new entry")
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit instead of looping")
	cmd.Flags().StringVar(&since, "since", "", "override the start date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "search and report without downloading")
	cmd.Flags().BoolVar(&bg, "bg", false, "run as a detached background job")
	return cmd
}
