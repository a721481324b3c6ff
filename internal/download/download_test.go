package download

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
)

func TestStripGzSuffix(t *testing.T) {
	if got := stripGzSuffix("pdb1abc.ent.gz"); got != "pdb1abc.ent" {
		t.Fatalf("stripGzSuffix: got %q", got)
	}
	if got := stripGzSuffix("pdb1abc.ent"); got != "pdb1abc.ent" {
		t.Fatalf("stripGzSuffix no-op: got %q", got)
	}
}

func TestDecompressInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt.gz")
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("hello pdb"))
	gz.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := decompressInPlace(path); err != nil {
		t.Fatalf("decompressInPlace: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "x.txt"))
	if err != nil {
		t.Fatalf("read decompressed: %v", err)
	}
	if string(got) != "hello pdb" {
		t.Fatalf("unexpected content: %q", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("compressed original should be removed")
	}
}

func TestDownloadManySkipsExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "pdb1abc.ent")
	if err := os.WriteFile(dest, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := pdbid.New("1abc")
	if err != nil {
		t.Fatal(err)
	}
	task := Task{ID: id, Mirror: mirror.Get(mirror.Rcsb), Format: pdbformat.Pdb, Dest: dest}

	d := New(2, 5*time.Second)
	results := d.DownloadMany(t.Context(), []Task{task})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Status != StatusSkipped {
		t.Fatalf("expected skip for existing file, got %v (err=%v)", results[0].Status, results[0].Err)
	}
}

func TestDownloadManyPreservesInputOrder(t *testing.T) {
	// Entry "0" is slow, later entries are fast, so completion order is the
	// reverse of input order; DownloadMany must still return results
	// matching tasks by position.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "1000") {
			time.Sleep(50 * time.Millisecond)
		}
		w.Write([]byte("X"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	m := mirror.Get(mirror.Rcsb)
	m.HTTPSURL = srv.URL

	ids := []string{"1000", "2000", "3000", "4000"}
	tasks := make([]Task, len(ids))
	for i, raw := range ids {
		id, err := pdbid.New(raw)
		if err != nil {
			t.Fatal(err)
		}
		tasks[i] = Task{ID: id, Mirror: m, Format: pdbformat.Pdb, Dest: filepath.Join(dir, raw+".ent")}
	}

	d := New(4, 5*time.Second)
	results := d.DownloadMany(t.Context(), tasks)
	if len(results) != len(tasks) {
		t.Fatalf("expected %d results, got %d", len(tasks), len(results))
	}
	for i, r := range results {
		if r.Task.ID.String() != tasks[i].ID.String() {
			t.Fatalf("result %d: expected id %s, got %s", i, tasks[i].ID.String(), r.Task.ID.String())
		}
		if r.Status != StatusOK {
			t.Fatalf("result %d: expected OK, got %v (err=%v)", i, r.Status, r.Err)
		}
	}
}

func TestFetchOneSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ATOM record data"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.ent")
	id, _ := pdbid.New("1abc")
	m := mirror.Get(mirror.Rcsb)
	m.HTTPSURL = srv.URL
	task := Task{ID: id, Mirror: m, Format: pdbformat.Pdb, Dest: dest}

	d := New(1, 5*time.Second)
	res := d.fetchOne(t.Context(), task)
	if res.Status != StatusOK {
		t.Fatalf("expected OK, got %v (err=%v)", res.Status, res.Err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != "ATOM record data" {
		t.Fatalf("unexpected content: %q", got)
	}
}
