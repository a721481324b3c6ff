package job

import (
	"os"
	"testing"
	"time"
)

func TestGenerateIDFormat(t *testing.T) {
	id := GenerateID()
	if len(id) != 8 {
		t.Fatalf("expected 8-char job id, got %q", id)
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("expected lowercase hex id, got %q", id)
		}
	}
}

func TestMarkCompleted(t *testing.T) {
	m := NewMeta("abc123", "sync rcsb", os.Getpid())
	m.MarkCompleted(0)
	if m.Status != Completed {
		t.Fatalf("expected Completed, got %v", m.Status)
	}
	if m.PID != nil {
		t.Fatalf("expected PID cleared")
	}

	m2 := NewMeta("abc124", "sync rcsb", os.Getpid())
	m2.MarkCompleted(1)
	if m2.Status != Failed {
		t.Fatalf("expected Failed for nonzero exit code, got %v", m2.Status)
	}
}

func TestManagerCreateSaveLoad(t *testing.T) {
	base := t.TempDir()
	mgr, err := NewManager(base)
	if err != nil {
		t.Fatal(err)
	}
	id, _, err := mgr.CreateJob("sync rcsb")
	if err != nil {
		t.Fatal(err)
	}
	meta := NewMeta(id, "sync rcsb", os.Getpid())
	if err := mgr.SaveMeta(meta); err != nil {
		t.Fatal(err)
	}
	got, err := mgr.LoadMeta(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Command != "sync rcsb" || got.Status != Running {
		t.Fatalf("unexpected meta: %+v", got)
	}
}

func TestManagerRefreshStatusDeadProcess(t *testing.T) {
	base := t.TempDir()
	mgr, err := NewManager(base)
	if err != nil {
		t.Fatal(err)
	}
	id, _, err := mgr.CreateJob("sync rcsb")
	if err != nil {
		t.Fatal(err)
	}
	// An implausible PID to simulate a vanished process.
	meta := NewMeta(id, "sync rcsb", 1<<30)
	if err := mgr.SaveMeta(meta); err != nil {
		t.Fatal(err)
	}
	refreshed, err := mgr.RefreshStatus(id)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.Status != Failed {
		t.Fatalf("expected Failed after dead-process probe, got %v", refreshed.Status)
	}
	if refreshed.ExitCode == nil || *refreshed.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %+v", refreshed.ExitCode)
	}
}

func TestManagerListHidesOldCompleted(t *testing.T) {
	base := t.TempDir()
	mgr, err := NewManager(base)
	if err != nil {
		t.Fatal(err)
	}
	id, _, err := mgr.CreateJob("sync rcsb")
	if err != nil {
		t.Fatal(err)
	}
	meta := NewMeta(id, "sync rcsb", os.Getpid())
	old := time.Now().Add(-48 * time.Hour)
	meta.FinishedAt = &old
	meta.Status = Completed
	if err := mgr.SaveMeta(meta); err != nil {
		t.Fatal(err)
	}

	jobs, err := mgr.List(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected old completed job hidden without All, got %d", len(jobs))
	}

	jobs, err = mgr.List(Filter{All: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected job visible with All, got %d", len(jobs))
	}
}
