// Package update implements the two-mode update checker (HEAD-probe and
// checksum) and the fixer that re-downloads outdated or corrupt entries.
package update

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/APTlantis/pdb-sync/internal/checksum"
	"github.com/APTlantis/pdb-sync/internal/download"
	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
)

// Status is the outcome of checking one local entry against the mirror.
type Status int

const (
	UpToDate Status = iota
	Outdated
	Missing
	Unknown
	Updated
	UpdateFailed
)

func (s Status) String() string {
	switch s {
	case UpToDate:
		return "up_to_date"
	case Outdated:
		return "outdated"
	case Missing:
		return "missing"
	case Unknown:
		return "unknown"
	case Updated:
		return "updated"
	case UpdateFailed:
		return "update_failed"
	default:
		return "unknown"
	}
}

// Entry is one local file checked against a mirror.
type Entry struct {
	ID        pdbid.ID
	LocalPath string
}

// Result is the checked/fixed outcome for one Entry.
type Result struct {
	Entry      Entry
	Status     Status
	LocalTime  time.Time
	RemoteTime time.Time // placeholder timestamp in checksum mode; see spec §4.5
	Reason     string
	Err        error
}

// allowedSkew is the tolerance window for Last-Modified comparisons: a
// remote timestamp within 5s of the local mtime is still UpToDate.
const allowedSkew = 5 * time.Second

// HeadChecker checks entries via HTTP HEAD, comparing Last-Modified against
// local mtime. Parallelism is bounded by a semaphore (default width 10); the
// aggregate request rate across all workers is additionally capped by a
// token bucket so a large batch doesn't hammer the mirror in a burst.
type HeadChecker struct {
	client      *http.Client
	mirror      mirror.Mirror
	concurrency int
	timeout     time.Duration
	limiter     *rate.Limiter
}

// NewHeadChecker builds a HeadChecker against the given mirror.
func NewHeadChecker(m mirror.Mirror, concurrency int, timeout time.Duration) *HeadChecker {
	if concurrency <= 0 {
		concurrency = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HeadChecker{
		client:      &http.Client{Timeout: timeout},
		mirror:      m,
		concurrency: concurrency,
		timeout:     timeout,
		limiter:     rate.NewLimiter(rate.Limit(concurrency*5), concurrency),
	}
}

// CheckMany probes every entry concurrently (bounded) and returns results
// in input order.
func (c *HeadChecker) CheckMany(ctx context.Context, entries []Entry, fmtType pdbformat.FileFormat) []Result {
	results := make([]Result, len(entries))
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e Entry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = c.checkOne(ctx, e, fmtType)
		}(i, e)
	}
	wg.Wait()
	return results
}

func (c *HeadChecker) checkOne(ctx context.Context, e Entry, f pdbformat.FileFormat) Result {
	res := Result{Entry: e}

	fi, err := os.Stat(e.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			res.Status = Missing
			return res
		}
		res.Status = Unknown
		res.Reason = err.Error()
		return res
	}
	res.LocalTime = fi.ModTime().UTC()

	url := c.mirror.StructureURL(f, e.ID)
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(tctx); err != nil {
		res.Status = Unknown
		res.Reason = "rate limit wait: " + err.Error()
		return res
	}
	req, err := http.NewRequestWithContext(tctx, http.MethodHead, url, nil)
	if err != nil {
		res.Status = Unknown
		res.Reason = err.Error()
		return res
	}
	resp, err := c.client.Do(req)
	if err != nil {
		res.Status = Unknown
		res.Reason = err.Error()
		return res
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		res.Status = Missing
		return res
	case resp.StatusCode == http.StatusMethodNotAllowed:
		res.Status = Unknown
		res.Reason = "HEAD not allowed"
		return res
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		res.Status = Unknown
		res.Reason = "unexpected status"
		return res
	}

	lm := resp.Header.Get("Last-Modified")
	if lm == "" {
		res.Status = Unknown
		res.Reason = "no Last-Modified header"
		return res
	}
	remote, err := parseHTTPDate(lm)
	if err != nil {
		res.Status = Unknown
		res.Reason = "unparseable Last-Modified: " + lm
		return res
	}
	res.RemoteTime = remote

	if remote.Sub(res.LocalTime) > allowedSkew {
		res.Status = Outdated
	} else {
		res.Status = UpToDate
	}
	return res
}

// parseHTTPDate accepts both RFC 1123/2822-ish and the plain
// "%a, %d %b %Y %H:%M:%S GMT" layout used by Last-Modified headers.
func parseHTTPDate(s string) (time.Time, error) {
	for _, layout := range []string{http.TimeFormat, time.RFC1123, time.RFC1123Z, "Mon, 02 Jan 2006 15:04:05 GMT"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, pdberr.New(pdberr.Network, "unparseable date: "+s)
}

// CheckManyChecksum runs the slow, accurate mode: sequential within one
// call so the checksum cache (amortized across entries sharing a
// directory) is actually shared. Outdated results carry placeholder
// timestamps; callers must not treat them as ground truth beyond "newer
// than local".
func CheckManyChecksum(ctx context.Context, cache *checksum.Cache, m mirror.Mirror, subpathOf func(Entry) string, entries []Entry) []Result {
	results := make([]Result, len(entries))
	now := time.Now().UTC()
	for i, e := range entries {
		subpath := subpathOf(e)
		table, err := cache.Fetch(ctx, m.ChecksumsURL(subpath))
		if err != nil {
			results[i] = Result{Entry: e, Status: Unknown, Reason: err.Error()}
			continue
		}
		sum, ok := checksum.LookupEntry(table, e.LocalPath)
		if !ok {
			results[i] = Result{Entry: e, Status: Unknown, Reason: "no checksum entry"}
			continue
		}
		vr := checksum.VerifyFile(e.LocalPath, sum)
		switch {
		case vr.Err != nil && os.IsNotExist(vr.Err):
			results[i] = Result{Entry: e, Status: Missing}
		case vr.Err != nil:
			results[i] = Result{Entry: e, Status: Unknown, Reason: vr.Err.Error()}
		case vr.OK:
			results[i] = Result{Entry: e, Status: UpToDate}
		default:
			// Placeholder timestamps: checksum mode has no real remote
			// mtime, only "this differs from what's published now".
			results[i] = Result{Entry: e, Status: Outdated, LocalTime: now, RemoteTime: now}
		}
	}
	return results
}

// Fix re-downloads every Outdated/Missing entry in results: it removes the
// local file first (a missing file is tolerated), then fetches it through the
// downloader's temp-file-then-rename write (overwrite=true,
// decompress=false — the update checker works against the stored,
// possibly-compressed file directly). Never aborts the batch on a single
// failure.
func Fix(ctx context.Context, d *download.Downloader, m mirror.Mirror, f pdbformat.FileFormat, results []Result) []Result {
	var toFix []int
	for i, r := range results {
		if r.Status == Outdated || r.Status == Missing {
			toFix = append(toFix, i)
		}
	}
	if len(toFix) == 0 {
		return results
	}

	tasks := make([]download.Task, len(toFix))
	for j, i := range toFix {
		e := results[i].Entry
		_ = os.Remove(e.LocalPath) // tolerate missing
		tasks[j] = download.Task{
			ID: e.ID, Mirror: m, Format: f, Dest: e.LocalPath,
			Overwrite: true, Decompress: false,
		}
	}
	dlResults := d.DownloadMany(ctx, tasks)

	out := make([]Result, len(results))
	copy(out, results)
	for j, i := range toFix {
		dr := dlResults[j]
		if dr.Status == download.StatusOK || dr.Status == download.StatusSkipped {
			out[i].Status = Updated
		} else {
			out[i].Status = UpdateFailed
			out[i].Err = dr.Err
		}
	}
	return out
}
