// Package download implements the bounded-concurrency HTTPS fetcher that
// mirrors PDB archive entries: a worker-pool-over-channels shape, an
// exponential-backoff-with-jitter retry loop, and Prometheus
// instrumentation, retargeted at PDB mirrors instead of crates.io.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/APTlantis/pdb-sync/internal/checksum"
	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
)

// Task describes one file to fetch.
type Task struct {
	ID             pdbid.ID
	Mirror         mirror.Mirror
	Format         pdbformat.FileFormat
	DataType       pdbformat.DataType
	AssemblyNumber int    // only meaningful for Assemblies/Biounit data types
	Dest           string // final on-disk path
	Decompress     bool   // gunzip after a successful compressed fetch
	Overwrite      bool
}

// Status tags the outcome of one Task.
type Status int

const (
	StatusOK Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is the outcome of one Task.
type Result struct {
	Task     Task
	Status   Status
	Path     string
	Size     int64
	Retries  int
	Err      error
	Duration time.Duration
}

var (
	metOnce     sync.Once
	metRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pdbsync_download_requests_total", Help: "Download attempts by status and HTTP code"},
		[]string{"status", "code"},
	)
	metBytes    = prometheus.NewCounter(prometheus.CounterOpts{Name: "pdbsync_download_bytes_total", Help: "Total bytes downloaded"})
	metDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "pdbsync_download_duration_seconds", Help: "Time spent per download attempt", Buckets: prometheus.DefBuckets})
	metRetries  = prometheus.NewCounter(prometheus.CounterOpts{Name: "pdbsync_download_retries_total", Help: "Total retry attempts"})
	metInflight = prometheus.NewGauge(prometheus.GaugeOpts{Name: "pdbsync_download_inflight", Help: "In-flight HTTP requests"})
)

// RegisterMetrics registers the package's Prometheus collectors exactly
// once; safe to call from multiple commands in the same process.
func RegisterMetrics() {
	metOnce.Do(func() {
		prometheus.MustRegister(metRequests, metBytes, metDuration, metRetries, metInflight)
	})
}

// Downloader fetches Tasks with bounded concurrency.
type Downloader struct {
	client      *http.Client
	concurrency int
	timeout     time.Duration

	retries   int
	retryBase time.Duration
	retryMax  time.Duration

	countsMu sync.Mutex
	okCount  int64
	errCount int64
}

// New builds a Downloader tuned for many concurrent small-file fetches:
// HTTP/2, a generous idle connection pool.
func New(concurrency int, timeout time.Duration) *Downloader {
	if concurrency <= 0 {
		concurrency = 8
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          concurrency * 4,
		MaxIdleConnsPerHost:   concurrency * 4,
		MaxConnsPerHost:       concurrency * 2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Downloader{
		client:      &http.Client{Transport: tr, Timeout: timeout},
		concurrency: concurrency,
		timeout:     timeout,
		retries:     6,
		retryBase:   500 * time.Millisecond,
		retryMax:    30 * time.Second,
	}
}

// SetRetries overrides the retry attempt count.
func (d *Downloader) SetRetries(n int) { d.retries = n }

// SetRetryBase overrides the base backoff duration.
func (d *Downloader) SetRetryBase(dur time.Duration) {
	if dur > 0 {
		d.retryBase = dur
	}
}

// SetRetryMax caps the backoff duration per attempt.
func (d *Downloader) SetRetryMax(dur time.Duration) {
	if dur > 0 {
		d.retryMax = dur
	}
}

func (d *Downloader) incOK()  { d.countsMu.Lock(); d.okCount++; d.countsMu.Unlock() }
func (d *Downloader) incErr() { d.countsMu.Lock(); d.errCount++; d.countsMu.Unlock() }

// Counts returns the running ok/error tallies.
func (d *Downloader) Counts() (ok, errc int64) {
	d.countsMu.Lock()
	ok, errc = d.okCount, d.errCount
	d.countsMu.Unlock()
	return
}

// indexedTask pairs a Task with its position in the caller's input slice so
// the worker pool can scatter work across goroutines while DownloadMany
// still returns results in input order (spec invariant: same order and
// count as tasks).
type indexedTask struct {
	idx int
	t   Task
}

// DownloadMany runs tasks through a worker pool of d.concurrency goroutines
// and returns one Result per task, in the same order as tasks.
func (d *Downloader) DownloadMany(ctx context.Context, tasks []Task) []Result {
	tasksCh := make(chan indexedTask)
	results := make([]Result, len(tasks))
	var wg sync.WaitGroup

	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range tasksCh {
				tctx, cancel := context.WithTimeout(ctx, d.timeout)
				results[it.idx] = d.fetchOne(tctx, it.t)
				cancel()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(tasksCh)
		for i, t := range tasks {
			select {
			case tasksCh <- indexedTask{idx: i, t: t}:
			case <-ctx.Done():
				// Remaining tasks never get dispatched; fill their slots
				// below so the result count still matches the input.
				for j := i; j < len(tasks); j++ {
					results[j] = Result{Task: tasks[j], Status: StatusFailed, Err: pdberr.Wrap(pdberr.Download, "fetch "+buildURL(tasks[j]), ctx.Err())}
				}
				return
			}
		}
	}()

	wg.Wait()
	return results
}

func (d *Downloader) fetchOne(ctx context.Context, t Task) Result {
	start := time.Now()
	res := Result{Task: t, Path: t.Dest}

	if !t.Overwrite {
		if fi, err := os.Stat(t.Dest); err == nil && !fi.IsDir() {
			res.Status = StatusSkipped
			res.Size = fi.Size()
			res.Duration = time.Since(start)
			return res
		}
	}

	if err := os.MkdirAll(filepath.Dir(t.Dest), 0o755); err != nil {
		res.Status = StatusFailed
		res.Err = pdberr.Wrap(pdberr.Io, "mkdir", err)
		d.incErr()
		return res
	}

	url := buildURL(t)
	tmpPath := t.Dest + ".tmp"
	attempts := max(1, d.retries)

	var (
		n          int64
		lastErr    error
		attemptCnt int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCnt = attempt
		_ = os.Remove(tmpPath)
		f, err := os.Create(tmpPath)
		if err != nil {
			lastErr = err
			break
		}

		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		req.Header.Set("User-Agent", "pdb-sync/0.1")
		metInflight.Inc()
		attemptStart := time.Now()
		resp, err := d.client.Do(req)
		if err != nil {
			f.Close()
			_ = os.Remove(tmpPath)
			lastErr = err
			metDuration.Observe(time.Since(attemptStart).Seconds())
			metRequests.WithLabelValues("error", "net").Inc()
			metInflight.Dec()
		} else if resp.StatusCode == http.StatusOK {
			n, err = io.Copy(f, resp.Body)
			resp.Body.Close()
			f.Close()
			metDuration.Observe(time.Since(attemptStart).Seconds())
			if err == nil {
				if err := os.Rename(tmpPath, t.Dest); err == nil {
					lastErr = nil
					metBytes.Add(float64(n))
					metRequests.WithLabelValues("ok", strconv.Itoa(resp.StatusCode)).Inc()
					metInflight.Dec()
					break
				} else {
					lastErr = err
				}
			} else {
				lastErr = err
			}
			metInflight.Dec()
		} else {
			retryable := resp.StatusCode == http.StatusRequestTimeout ||
				resp.StatusCode == http.StatusTooEarly ||
				resp.StatusCode == http.StatusTooManyRequests ||
				resp.StatusCode >= 500
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			resp.Body.Close()
			f.Close()
			_ = os.Remove(tmpPath)
			metDuration.Observe(time.Since(attemptStart).Seconds())
			metRequests.WithLabelValues("error", strconv.Itoa(resp.StatusCode)).Inc()
			metInflight.Dec()
			if !retryable {
				break
			}
		}

		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			break
		}
		if attempt < attempts {
			back := d.retryBase << (attempt - 1)
			if back > d.retryMax {
				back = d.retryMax
			}
			// jitter without math/rand, keeps the clock as the only entropy source
			jitter := 0.5 + (float64(time.Now().UnixNano()&0x3ff) / 1024.0)
			sleep := time.Duration(float64(back) * jitter)
			slog.Warn("download_retry", "attempt", attempt, "max", attempts, "backoff", sleep.String(), "url", url, "err", lastErr)
			metRetries.Inc()
			time.Sleep(sleep)
		}
	}

	res.Retries = max(0, attemptCnt-1)
	if lastErr != nil {
		res.Status = StatusFailed
		res.Err = pdberr.Wrap(pdberr.Download, "fetch "+url, lastErr)
		d.incErr()
		res.Duration = time.Since(start)
		return res
	}
	res.Size = n

	if t.Decompress && t.Format.Compressed() {
		if err := decompressInPlace(t.Dest); err != nil {
			res.Status = StatusFailed
			res.Err = pdberr.Wrap(pdberr.Conversion, "decompress "+t.Dest, err)
			d.incErr()
			res.Duration = time.Since(start)
			return res
		}
		res.Path = strings.TrimSuffix(t.Dest, ".gz")
	}

	res.Status = StatusOK
	d.incOK()
	res.Duration = time.Since(start)
	return res
}

// decompressInPlace gunzips path to a sibling ".tmp" file and atomically
// renames it over the stripped-suffix destination, then removes the
// compressed original.
func decompressInPlace(path string) error {
	dest := stripGzSuffix(path)
	tmp := dest + ".tmp"

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return err
	}
	defer gz.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, gz); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return err
	}
	return os.Remove(path)
}

func stripGzSuffix(path string) string {
	if filepath.Ext(path) == ".gz" {
		return path[:len(path)-len(".gz")]
	}
	return path
}

// VerifyAgainstChecksums applies a fetched CHECKSUMS manifest to a set of
// already-downloaded results, annotating failures. It does not re-download;
// see the update package for the fetch-then-fix loop.
func VerifyAgainstChecksums(entries map[string]string, paths []string) []checksum.Result {
	out := make([]checksum.Result, 0, len(paths))
	for _, p := range paths {
		sum, _ := checksum.LookupEntry(entries, p)
		out = append(out, checksum.VerifyFile(p, sum))
	}
	return out
}

// buildURL selects the per-mirror structure template for Structures tasks
// (closest to how an end user actually fetches a single entry) and the
// data-type-aware divided layout for everything else.
func buildURL(t Task) string {
	if t.DataType == pdbformat.Structures {
		return t.Mirror.StructureURL(t.Format, t.ID)
	}
	return t.Mirror.DataURL(t.DataType, t.Format, t.ID, t.AssemblyNumber)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
