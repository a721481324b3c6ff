// Package job supervises background pdb-sync invocations: spawning a
// detached re-exec of the current binary, tracking liveness via PID probes,
// and persisting per-job metadata/log files.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// Status is the job lifecycle state. Terminal states are absorbing.
type Status int

const (
	Running Status = iota
	Completed
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "running":
		*s = Running
	case "completed":
		*s = Completed
	case "failed":
		*s = Failed
	case "cancelled":
		*s = Cancelled
	default:
		return fmt.Errorf("unknown job status: %s", str)
	}
	return nil
}

// Meta is the persisted metadata for one job.
type Meta struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     Status     `json:"status"`
	PID        *int       `json:"pid,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
}

// NewMeta constructs a fresh Running job record.
func NewMeta(id, command string, pid int) Meta {
	return Meta{ID: id, Command: command, StartedAt: time.Now(), Status: Running, PID: &pid}
}

// MarkCompleted sets the terminal status from an exit code: 0 is
// Completed, anything else is Failed. Clears the PID.
func (m *Meta) MarkCompleted(exitCode int) {
	now := time.Now()
	m.FinishedAt = &now
	m.ExitCode = &exitCode
	if exitCode == 0 {
		m.Status = Completed
	} else {
		m.Status = Failed
	}
	m.PID = nil
}

// MarkCancelled sets the terminal Cancelled status.
func (m *Meta) MarkCancelled() {
	now := time.Now()
	m.FinishedAt = &now
	m.Status = Cancelled
	m.PID = nil
}

// IsRunning reports whether the job has not reached a terminal state.
func (m Meta) IsRunning() bool { return m.Status == Running }

// Duration returns how long the job ran (or has been running).
func (m Meta) Duration() time.Duration {
	end := time.Now()
	if m.FinishedAt != nil {
		end = *m.FinishedAt
	}
	return end.Sub(m.StartedAt)
}

// Filter selects which jobs List returns.
type Filter struct {
	RunningOnly bool
	All         bool // include jobs completed more than 24h ago
}

const hiddenAfter = 24 * time.Hour

// GenerateID derives an 8-hex job id from the current time xor'd with pid,
// avoiding a dependency on math/rand for what's just a uniqueness tag.
func GenerateID() string {
	ts := uint32(time.Now().UnixNano())
	pid := uint32(os.Getpid())
	return fmt.Sprintf("%08x", ts^pid)
}

// jobIDPattern matches GenerateID's own output: exactly 8 lowercase hex
// digits, per spec §4.8's "validate the job_id is hex-only" requirement.
var jobIDPattern = func(id string) bool {
	if len(id) != 8 {
		return false
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

func validateJobID(id string) error {
	if !jobIDPattern(id) || strings.ContainsAny(id, "/\\") {
		return pdberr.New(pdberr.Job, "invalid job id: "+id)
	}
	return nil
}

// Manager owns the on-disk job directory tree.
type Manager struct {
	jobsDir string
}

// NewManager resolves the job directory from baseDir (typically
// $XDG_CACHE_HOME/pdb-cli/jobs, provided by the caller).
func NewManager(baseDir string) (*Manager, error) {
	dir := filepath.Join(baseDir, "jobs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pdberr.Wrap(pdberr.Io, "create jobs dir", err)
	}
	return &Manager{jobsDir: dir}, nil
}

func (m *Manager) JobDir(id string) string     { return filepath.Join(m.jobsDir, "job_"+id) }
func (m *Manager) MetaPath(id string) string   { return filepath.Join(m.JobDir(id), "meta.json") }
func (m *Manager) StdoutPath(id string) string { return filepath.Join(m.JobDir(id), "stdout.log") }
func (m *Manager) StderrPath(id string) string { return filepath.Join(m.JobDir(id), "stderr.log") }
func (m *Manager) PidPath(id string) string    { return filepath.Join(m.JobDir(id), "pid") }

// CreateJob allocates a new job directory with empty log files and returns
// its id and directory.
func (m *Manager) CreateJob(command string) (id string, dir string, err error) {
	id = GenerateID()
	dir = m.JobDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", pdberr.Wrap(pdberr.Io, "create job dir", err)
	}
	for _, p := range []string{m.StdoutPath(id), m.StderrPath(id)} {
		f, err := os.Create(p)
		if err != nil {
			return "", "", pdberr.Wrap(pdberr.Io, "create log file", err)
		}
		f.Close()
	}
	return id, dir, nil
}

// SaveMeta writes meta.json atomically.
func (m *Manager) SaveMeta(meta Meta) error {
	if err := validateJobID(meta.ID); err != nil {
		return err
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return pdberr.Wrap(pdberr.Job, "marshal meta", err)
	}
	tmp := m.MetaPath(meta.ID) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return pdberr.Wrap(pdberr.Io, "write meta", err)
	}
	return os.Rename(tmp, m.MetaPath(meta.ID))
}

// LoadMeta reads meta.json for job id.
func (m *Manager) LoadMeta(id string) (Meta, error) {
	if err := validateJobID(id); err != nil {
		return Meta{}, err
	}
	b, err := os.ReadFile(m.MetaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, pdberr.New(pdberr.Job, "job not found: "+id)
		}
		return Meta{}, pdberr.Wrap(pdberr.Io, "read meta", err)
	}
	var meta Meta
	if err := json.Unmarshal(b, &meta); err != nil {
		return Meta{}, pdberr.Wrap(pdberr.Job, "parse meta", err)
	}
	return meta, nil
}

// SavePid writes the pid file for a job.
func (m *Manager) SavePid(id string, pid int) error {
	return os.WriteFile(m.PidPath(id), []byte(strconv.Itoa(pid)), 0o644)
}

// LoadPid reads the pid file for a job, if present.
func (m *Manager) LoadPid(id string) (int, bool) {
	b, err := os.ReadFile(m.PidPath(id))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// RemovePid deletes the pid file.
func (m *Manager) RemovePid(id string) { _ = os.Remove(m.PidPath(id)) }

// RefreshStatus re-probes liveness for a Running job, marking it Failed
// with exit code 1 ("we don't know the exit code, so assume failure") if
// its process is no longer alive. No-op for terminal states.
func (m *Manager) RefreshStatus(id string) (Meta, error) {
	meta, err := m.LoadMeta(id)
	if err != nil {
		return Meta{}, err
	}
	if meta.Status != Running {
		return meta, nil
	}
	pid := 0
	if meta.PID != nil {
		pid = *meta.PID
	} else if p, ok := m.LoadPid(id); ok {
		pid = p
	}
	if pid != 0 && isProcessRunning(pid) {
		return meta, nil
	}
	meta.MarkCompleted(1)
	if err := m.SaveMeta(meta); err != nil {
		return meta, err
	}
	m.RemovePid(id)
	return meta, nil
}

// List returns jobs matching filter, newest first.
func (m *Manager) List(filter Filter) ([]Meta, error) {
	entries, err := os.ReadDir(m.jobsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pdberr.Wrap(pdberr.Io, "read jobs dir", err)
	}
	var out []Meta
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "job_") {
			continue
		}
		id := strings.TrimPrefix(e.Name(), "job_")
		meta, err := m.RefreshStatus(id)
		if err != nil {
			continue
		}
		if filter.RunningOnly && !meta.IsRunning() {
			continue
		}
		if !filter.All && !meta.IsRunning() && meta.FinishedAt != nil && time.Since(*meta.FinishedAt) > hiddenAfter {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Cancel sends a termination signal to a running job and marks it
// Cancelled.
func (m *Manager) Cancel(id string) error {
	meta, err := m.LoadMeta(id)
	if err != nil {
		return err
	}
	if !meta.IsRunning() {
		return pdberr.New(pdberr.Job, "job is not running: "+id)
	}
	pid := 0
	if meta.PID != nil {
		pid = *meta.PID
	} else if p, ok := m.LoadPid(id); ok {
		pid = p
	}
	if pid != 0 {
		if err := terminateProcess(pid); err != nil {
			return pdberr.Wrap(pdberr.Job, "signal process", err)
		}
	}
	meta.MarkCancelled()
	if err := m.SaveMeta(meta); err != nil {
		return err
	}
	m.RemovePid(id)
	return nil
}

// CleanOldJobs removes job directories finished more than olderThan ago,
// skipping running jobs, and returns the count removed.
func (m *Manager) CleanOldJobs(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.jobsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, pdberr.Wrap(pdberr.Io, "read jobs dir", err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "job_") {
			continue
		}
		id := strings.TrimPrefix(e.Name(), "job_")
		meta, err := m.LoadMeta(id)
		if err != nil {
			continue
		}
		if meta.IsRunning() {
			continue
		}
		ref := meta.StartedAt
		if meta.FinishedAt != nil {
			ref = *meta.FinishedAt
		}
		if ref.After(cutoff) {
			continue
		}
		if err := archiveAndRemove(m.JobDir(id)); err == nil {
			removed++
		}
	}
	return removed, nil
}

var errNoSuchProcess = errors.New("no such process")
