// Package scan walks the local mirror tree for list/find/validate/stats/
// update, classifying each leaf file via pdbid.ExtractPdbID.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
)

// Entry is one classified leaf file under the divided archive layout.
type Entry struct {
	Path    string
	ID      pdbid.ID
	HasID   bool
	Format  pdbformat.FileFormat
	Size    int64
	ModTime time.Time
}

// Walk enumerates every regular file under <base>/<subdir>/<bucket>/...,
// classifying it by extension and, where recognizable, PDB ID. Files whose
// format can't be determined are still returned (HasID=false) so stats can
// count "unrecognized" without silently dropping them.
func Walk(base string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		e := Entry{Path: path, Size: info.Size(), ModTime: info.ModTime()}
		if f, ok := pdbformat.ParseFileFormat(d.Name()); ok {
			e.Format = f
			if id, ok := pdbid.ExtractPdbID(d.Name(), f); ok {
				e.ID = id
				e.HasID = true
			}
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, pdberr.Wrap(pdberr.Io, "walk "+base, err)
	}
	return entries, nil
}

// Stats aggregates Entries into local mirror statistics.
type Stats struct {
	TotalCount    int
	UniqueIDs     int
	TotalSize     int64
	ByFormat      map[string]int
	ByDataType    map[string]int
	Oldest        *Entry
	Newest        *Entry
	Largest       *Entry
	Smallest      *Entry
	SizeHistogram map[string]int // bucket label -> count
}

// Summarize computes Stats over entries. detailed gates the size histogram
// and oldest/newest/largest/smallest fields, matching the "stats
// --detailed" flag's cost/verbosity tradeoff.
func Summarize(entries []Entry, detailed bool) Stats {
	s := Stats{ByFormat: map[string]int{}, ByDataType: map[string]int{}}
	ids := map[string]bool{}

	for i := range entries {
		e := &entries[i]
		s.TotalCount++
		s.TotalSize += e.Size
		if e.HasID {
			ids[e.ID.String()] = true
		}
		if e.Format != 0 || e.HasID {
			s.ByFormat[e.Format.String()]++
		}

		if !detailed {
			continue
		}
		if s.Oldest == nil || e.ModTime.Before(s.Oldest.ModTime) {
			s.Oldest = e
		}
		if s.Newest == nil || e.ModTime.After(s.Newest.ModTime) {
			s.Newest = e
		}
		if s.Largest == nil || e.Size > s.Largest.Size {
			s.Largest = e
		}
		if s.Smallest == nil || e.Size < s.Smallest.Size {
			s.Smallest = e
		}
	}
	s.UniqueIDs = len(ids)

	if detailed {
		s.SizeHistogram = histogram(entries)
	}
	return s
}

func histogram(entries []Entry) map[string]int {
	h := map[string]int{"<1KB": 0, "1KB-100KB": 0, "100KB-1MB": 0, "1MB-10MB": 0, ">10MB": 0}
	for _, e := range entries {
		switch {
		case e.Size < 1<<10:
			h["<1KB"]++
		case e.Size < 100*(1<<10):
			h["1KB-100KB"]++
		case e.Size < 1<<20:
			h["100KB-1MB"]++
		case e.Size < 10*(1<<20):
			h["1MB-10MB"]++
		default:
			h[">10MB"]++
		}
	}
	return h
}

// SortKey selects the list/find sort dimension.
type SortKey int

const (
	SortByName SortKey = iota
	SortBySize
	SortByTime
)

// Filter narrows entries by glob pattern (matched against the lowercased
// ID) and format.
type Filter struct {
	Pattern string
	Format  *pdbformat.FileFormat
}

// Match finds entries whose ID matches any of patterns (glob syntax over
// the lowercased ID string), optionally restricted to one format.
func Match(entries []Entry, patterns []string, format *pdbformat.FileFormat) []Entry {
	var out []Entry
	for _, e := range entries {
		if !e.HasID {
			continue
		}
		if format != nil && e.Format != *format {
			continue
		}
		if len(patterns) == 0 {
			out = append(out, e)
			continue
		}
		for _, p := range patterns {
			if ok, _ := filepath.Match(strings.ToLower(p), e.ID.String()); ok {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Sort orders entries in place by key, optionally reversed.
func Sort(entries []Entry, key SortKey, reverse bool) {
	less := func(i, j int) bool {
		switch key {
		case SortBySize:
			return entries[i].Size < entries[j].Size
		case SortByTime:
			return entries[i].ModTime.Before(entries[j].ModTime)
		default:
			return entries[i].ID.String() < entries[j].ID.String()
		}
	}
	if reverse {
		orig := less
		less = func(i, j int) bool { return orig(j, i) }
	}
	sort.Slice(entries, less)
}
