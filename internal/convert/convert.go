// Package convert compresses, decompresses, and reformats local PDB files:
// bounded concurrency via a semaphore, a defer-based tempGuard that cleans
// up intermediate temp files on any exit path, and external-tool
// delegation for format conversion via the gemmi CLI.
package convert

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
)

// Operation tags what ConvertSingle should do to one file.
type Operation int

const (
	OpDecompress Operation = iota
	OpCompress
	OpConvertFormat
)

// Task describes one conversion unit.
type Task struct {
	Source    string
	Dest      string
	Operation Operation
	ToFormat  pdbformat.FileFormat // only meaningful for OpConvertFormat
}

// ResultKind tags the outcome of one Task.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultFailed
	ResultSkipped
)

// Result is the outcome of one Task.
type Result struct {
	Task Task
	Kind ResultKind
	Err  error
}

func (r Result) IsSuccess() bool { return r.Kind == ResultSuccess }
func (r Result) IsFailed() bool  { return r.Kind == ResultFailed }
func (r Result) IsSkipped() bool { return r.Kind == ResultSkipped }

// Converter runs Tasks with a bounded number of concurrent conversions.
type Converter struct {
	sem chan struct{}
}

// New constructs a Converter allowing at most concurrency simultaneous
// conversions.
func New(concurrency int) *Converter {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Converter{sem: make(chan struct{}, concurrency)}
}

// ConvertMany runs every task, bounded by the configured concurrency, and
// returns one Result per task.
func (c *Converter) ConvertMany(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			c.sem <- struct{}{}
			defer func() { <-c.sem }()
			results[i] = c.ConvertSingle(ctx, t)
		}(i, t)
	}
	wg.Wait()
	return results
}

// ConvertSingle performs one conversion task.
func (c *Converter) ConvertSingle(ctx context.Context, t Task) Result {
	if _, err := os.Stat(t.Source); err != nil {
		return Result{Task: t, Kind: ResultFailed, Err: pdberr.Wrap(pdberr.Io, "source missing", err)}
	}
	if err := os.MkdirAll(filepath.Dir(t.Dest), 0o755); err != nil {
		return Result{Task: t, Kind: ResultFailed, Err: pdberr.Wrap(pdberr.Io, "mkdir dest", err)}
	}

	switch t.Operation {
	case OpDecompress:
		gz, err := isGzipped(t.Source)
		if err != nil {
			return Result{Task: t, Kind: ResultFailed, Err: err}
		}
		if !gz {
			return Result{Task: t, Kind: ResultSkipped}
		}
		if err := gunzipFile(t.Source, t.Dest); err != nil {
			return Result{Task: t, Kind: ResultFailed, Err: pdberr.Wrap(pdberr.Conversion, "decompress", err)}
		}
		return Result{Task: t, Kind: ResultSuccess}

	case OpCompress:
		gz, err := isGzipped(t.Source)
		if err != nil {
			return Result{Task: t, Kind: ResultFailed, Err: err}
		}
		if gz {
			return Result{Task: t, Kind: ResultSkipped}
		}
		if err := gzipFile(t.Source, t.Dest); err != nil {
			return Result{Task: t, Kind: ResultFailed, Err: pdberr.Wrap(pdberr.Conversion, "compress", err)}
		}
		return Result{Task: t, Kind: ResultSuccess}

	case OpConvertFormat:
		if err := convertFormat(ctx, t); err != nil {
			return Result{Task: t, Kind: ResultFailed, Err: err}
		}
		return Result{Task: t, Kind: ResultSuccess}

	default:
		return Result{Task: t, Kind: ResultFailed, Err: pdberr.New(pdberr.InvalidInput, "unknown operation")}
	}
}

// isGzipped reports whether the first two bytes of path are the gzip magic.
func isGzipped(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, pdberr.Wrap(pdberr.Io, "open", err)
	}
	defer f.Close()
	var magic [2]byte
	n, err := f.Read(magic[:])
	if err != nil && err != io.EOF {
		return false, pdberr.Wrap(pdberr.Io, "read magic", err)
	}
	return n == 2 && magic[0] == 0x1f && magic[1] == 0x8b, nil
}

func gunzipFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	gz, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer gz.Close()

	tmp := dest + ".tmp"
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
	return os.Rename(tmp, dest)
}

func gzipFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// tempGuard removes its path on Close unless Keep has been called, used
// while staging an intermediate decompressed file ahead of a gemmi
// conversion.
type tempGuard struct {
	path string
	keep bool
}

func (g *tempGuard) Keep()  { g.keep = true }
func (g *tempGuard) Close() error {
	if g.keep {
		return nil
	}
	return os.Remove(g.path)
}

// CheckGemmiAvailable reports whether the gemmi CLI tool can be located and
// invoked. Returns a ToolNotFound error if not.
func CheckGemmiAvailable(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "gemmi", "--version")
	if err := cmd.Run(); err != nil {
		return pdberr.Wrap(pdberr.ToolNotFound, "gemmi not available", err)
	}
	return nil
}

func convertFormat(ctx context.Context, t Task) error {
	source := t.Source
	var guard *tempGuard

	if f, ok := pdbformat.ParseFileFormat(filepath.Base(source)); ok && f.Compressed() {
		tmp := strings.TrimSuffix(source, filepath.Ext(source)) + ".convert-src.tmp"
		if err := gunzipFile(source, tmp); err != nil {
			return pdberr.Wrap(pdberr.Conversion, "stage decompress", err)
		}
		guard = &tempGuard{path: tmp}
		defer guard.Close()
		source = tmp
	}

	if err := CheckGemmiAvailable(ctx); err != nil {
		return err
	}

	tmpOut := t.Dest + ".tmp"
	// "--" prevents filenames from being misinterpreted as gemmi flags.
	cmd := exec.CommandContext(ctx, "gemmi", "convert", "--", source, tmpOut)
	out, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(tmpOut)
		return pdberr.Wrap(pdberr.Conversion, "gemmi convert failed: "+string(out), err)
	}

	if t.ToFormat.Compressed() {
		if err := gzipFile(tmpOut, t.Dest); err != nil {
			_ = os.Remove(tmpOut)
			return pdberr.Wrap(pdberr.Conversion, "recompress", err)
		}
		return os.Remove(tmpOut)
	}
	return os.Rename(tmpOut, t.Dest)
}

// BuildDestPath derives the output path for a conversion task: in-place
// replaces the source's directory, otherwise the given destDir is used.
func BuildDestPath(source, destDir string, op Operation, toFormat pdbformat.FileFormat, inPlace bool) (string, error) {
	dir := destDir
	if inPlace {
		dir = filepath.Dir(source)
	}
	base := filepath.Base(source)

	switch op {
	case OpDecompress:
		if !strings.HasSuffix(base, ".gz") {
			return "", pdberr.New(pdberr.InvalidInput, "source has no .gz suffix: "+source)
		}
		return filepath.Join(dir, strings.TrimSuffix(base, ".gz")), nil
	case OpCompress:
		return filepath.Join(dir, base+".gz"), nil
	case OpConvertFormat:
		return filepath.Join(dir, buildOutputFilename(base, toFormat)), nil
	default:
		return "", pdberr.New(pdberr.InvalidInput, "unknown operation")
	}
}

func buildOutputFilename(base string, to pdbformat.FileFormat) string {
	stripped := stripCompressionExtension(base)
	name := stripped[:len(stripped)-len(filepath.Ext(stripped))]
	return name + to.Extension()
}

func stripCompressionExtension(name string) string {
	return strings.TrimSuffix(name, ".gz")
}
