package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/APTlantis/pdb-sync/internal/download"
	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
)

// Options configures one Watcher.
type Options struct {
	BaseDir      string
	Mirror       mirror.Mirror
	DataTypes    []pdbformat.DataType
	Format       pdbformat.FileFormat
	Filters      Filters
	Since        *time.Time
	Interval     time.Duration
	DryRun       bool
	Once         bool
	HookScript   string
	Notifier     Notifier
	StatePath    string
}

// Watcher runs the check -> download -> hook -> notify -> sleep loop.
type Watcher struct {
	opts     Options
	search   *SearchClient
	dl       *download.Downloader
	state    *State
}

// New constructs a Watcher, loading (or initializing) persisted state.
func New(opts Options, search *SearchClient, dl *download.Downloader) (*Watcher, error) {
	st, err := LoadOrInit(opts.StatePath)
	if err != nil {
		return nil, err
	}
	return &Watcher{opts: opts, search: search, dl: dl, state: st}, nil
}

// CycleResult summarizes one check cycle.
type CycleResult struct {
	Since       time.Time
	Found       []string
	NewIDs      []string
	Downloaded  []string
	DryRun      bool
}

// Run executes the loop until ctx is cancelled or Once is true. State is
// always persisted before returning, including on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		res, err := w.RunCycle(ctx)
		if err != nil {
			slog.Error("watch_cycle_failed", "err", err)
		} else {
			slog.Info("watch_cycle_complete", "found", len(res.Found), "new", len(res.NewIDs), "downloaded", len(res.Downloaded))
		}

		if w.opts.Once {
			return err
		}

		select {
		case <-ctx.Done():
			return w.state.Save(w.opts.StatePath)
		case <-time.After(w.opts.Interval):
		}
	}
}

// RunCycle executes exactly one check/download/hook/notify iteration.
func (w *Watcher) RunCycle(ctx context.Context) (CycleResult, error) {
	since := w.state.EffectiveStartDate(w.opts.Since)
	res := CycleResult{Since: since, DryRun: w.opts.DryRun}

	found, err := w.search.Search(ctx, since, w.opts.Filters)
	if err != nil {
		return res, err
	}
	res.Found = found

	var newIDs []string
	for _, id := range found {
		if !w.state.IsDownloaded(id) {
			newIDs = append(newIDs, id)
		}
	}
	res.NewIDs = newIDs

	if w.opts.DryRun {
		return res, nil
	}

	dataTypes := w.opts.DataTypes
	if len(dataTypes) == 0 {
		dataTypes = []pdbformat.DataType{pdbformat.Structures}
	}

	for _, idStr := range newIDs {
		id, err := pdbid.New(idStr)
		if err != nil {
			slog.Warn("watch_skip_invalid_id", "id", idStr, "err", err)
			continue
		}

		anySucceeded := false
		for _, dt := range dataTypes {
			dest := filepath.Join(w.opts.BaseDir, relativePathFor(id, dt, w.opts.Format))
			task := download.Task{
				ID: id, Mirror: w.opts.Mirror, Format: w.opts.Format, DataType: dt,
				Dest: dest, Decompress: true,
			}
			results := w.dl.DownloadMany(ctx, []download.Task{task})
			r := results[0]
			if r.Status == download.StatusOK || r.Status == download.StatusSkipped {
				anySucceeded = true
				res.Downloaded = append(res.Downloaded, idStr)
				if err := RunHook(ctx, w.opts.HookScript, idStr, r.Path); err != nil {
					slog.Warn("watch_hook_error", "id", idStr, "err", err)
				}
			}
		}
		if anySucceeded {
			w.state.MarkDownloaded(idStr)
		}

		select {
		case <-ctx.Done():
			w.state.UpdateLastCheck(time.Now())
			_ = w.state.Save(w.opts.StatePath)
			return res, ctx.Err()
		default:
		}
	}

	if len(res.Downloaded) > 0 && w.opts.Notifier != nil {
		title, body := SummarizeBatch(res.Downloaded)
		if err := w.opts.Notifier.Notify(title, body); err != nil {
			slog.Warn("watch_notify_failed", "err", err)
		}
	}

	w.state.UpdateLastCheck(time.Now())
	if err := w.state.Save(w.opts.StatePath); err != nil {
		return res, err
	}
	return res, nil
}

func relativePathFor(id pdbid.ID, dt pdbformat.DataType, f pdbformat.FileFormat) string {
	if dt == pdbformat.Structures {
		return pdbid.BuildRelativePath(id, f)
	}
	return fmt.Sprintf("%s/%s/%s", f.Subdir(), id.MiddleChars(), dt.FilenamePattern(id.String(), f, 0))
}
