package convert

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/APTlantis/pdb-sync/internal/pdbformat"
)

func writeGzip(t *testing.T, path string, content []byte) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIsGzipped(t *testing.T) {
	dir := t.TempDir()

	gzPath := filepath.Join(dir, "a.gz")
	writeGzip(t, gzPath, []byte("data"))
	if ok, err := isGzipped(gzPath); err != nil || !ok {
		t.Fatalf("expected gzipped true, got %v err=%v", ok, err)
	}

	plainPath := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(plainPath, []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, err := isGzipped(plainPath); err != nil || ok {
		t.Fatalf("expected gzipped false, got %v err=%v", ok, err)
	}

	emptyPath := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(emptyPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, err := isGzipped(emptyPath); err != nil || ok {
		t.Fatalf("empty file should not be gzipped, got %v err=%v", ok, err)
	}
}

func TestConvertSingleDecompressSkipsNonGzip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.ent")
	os.WriteFile(src, []byte("ATOM"), 0o644)

	c := New(2)
	res := c.ConvertSingle(t.Context(), Task{Source: src, Dest: filepath.Join(dir, "plain.out"), Operation: OpDecompress})
	if !res.IsSkipped() {
		t.Fatalf("expected skip, got %+v", res)
	}
}

func TestConvertSingleDecompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "x.ent.gz")
	writeGzip(t, src, []byte("ATOM 1 N"))
	dest := filepath.Join(dir, "x.ent")

	c := New(2)
	res := c.ConvertSingle(t.Context(), Task{Source: src, Dest: dest, Operation: OpDecompress})
	if !res.IsSuccess() {
		t.Fatalf("expected success, got %+v", res)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != "ATOM 1 N" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestBuildDestPath(t *testing.T) {
	got, err := BuildDestPath("/data/pdb1abc.ent.gz", "/out", OpDecompress, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/out", "pdb1abc.ent") {
		t.Fatalf("decompress dest: got %q", got)
	}

	got, err = BuildDestPath("/data/pdb1abc.ent", "/out", OpCompress, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/out", "pdb1abc.ent.gz") {
		t.Fatalf("compress dest: got %q", got)
	}

	got, err = BuildDestPath("/data/pdb1abc.cif.gz", "/out", OpConvertFormat, pdbformat.Pdb, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/out", "pdb1abc.ent") {
		t.Fatalf("convert dest: got %q", got)
	}
}
