// Package checksum fetches and applies PDB CHECKSUMS manifests.
package checksum

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// Cache holds parsed CHECKSUMS entries (filename -> md5 hex) keyed by the
// manifest URL they were fetched from, so repeated lookups against the same
// directory during one run cost a single network fetch.
type Cache struct {
	client *http.Client

	mu      sync.Mutex
	entries map[string]map[string]string // manifestURL -> filename -> md5hex
}

// NewCache constructs an empty checksum cache using client for fetches.
// A nil client is replaced by an http.Client with a 30-second timeout.
func NewCache(client *http.Client) *Cache {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Cache{client: client, entries: make(map[string]map[string]string)}
}

// Fetch retrieves and parses the CHECKSUMS manifest at url, caching the
// result for subsequent lookups.
func (c *Cache) Fetch(ctx context.Context, url string) (map[string]string, error) {
	c.mu.Lock()
	if m, ok := c.entries[url]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pdberr.Wrap(pdberr.ChecksumFetch, "build request: "+url, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, pdberr.Wrap(pdberr.ChecksumFetch, "fetch: "+url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, pdberr.New(pdberr.ChecksumFetch, fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, url))
	}

	m, err := Parse(resp.Body)
	if err != nil {
		return nil, pdberr.Wrap(pdberr.ChecksumFetch, "parse: "+url, err)
	}

	c.mu.Lock()
	c.entries[url] = m
	c.mu.Unlock()
	return m, nil
}

// Parse reads a CHECKSUMS manifest, recognizing both line formats in use:
//
//	MD5 (filename) = hash
//	<32-hex>  filename
//	<32-hex> *filename
//
// Filenames containing path separators, "..", or empty names are rejected
// to guard against path traversal when the entry is later joined onto a
// local directory.
func Parse(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		name, sum, ok := parseLine(line)
		if !ok {
			continue
		}
		if !safeName(name) {
			continue
		}
		out[name] = strings.ToLower(sum)
	}
	return out, s.Err()
}

func parseLine(line string) (name, sum string, ok bool) {
	if strings.HasPrefix(line, "MD5 (") {
		rest := strings.TrimPrefix(line, "MD5 (")
		idx := strings.Index(rest, ") = ")
		if idx < 0 {
			return "", "", false
		}
		name = rest[:idx]
		sum = strings.TrimSpace(rest[idx+len(") = "):])
		return name, sum, isHex32(sum)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return "", "", false
	}
	sum = fields[0]
	name = strings.TrimPrefix(fields[1], "*")
	return name, sum, isHex32(sum)
}

func isHex32(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

func safeName(name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return false
	}
	return true
}

// Result reports the outcome of verifying one local file.
type Result struct {
	Path    string
	OK      bool
	Want    string
	Got     string
	Missing bool // true if the manifest had no entry for this file
	Err     error
}

// VerifyFile computes the MD5 of the file at path and compares it against
// want (lowercase hex). An empty want means "no manifest entry" and is
// reported via Missing rather than a mismatch.
func VerifyFile(path, want string) Result {
	if want == "" {
		return Result{Path: path, Missing: true}
	}
	f, err := os.Open(path)
	if err != nil {
		return Result{Path: path, Want: want, Err: err}
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return Result{Path: path, Want: want, Err: err}
	}
	got := hex.EncodeToString(h.Sum(nil))
	return Result{Path: path, Want: want, Got: got, OK: strings.EqualFold(got, want)}
}

// LookupEntry finds the checksum entry matching the base name of path.
func LookupEntry(entries map[string]string, path string) (sum string, ok bool) {
	sum, ok = entries[filepath.Base(path)]
	return
}
