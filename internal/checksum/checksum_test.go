package checksum

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBothLineFormats(t *testing.T) {
	manifest := strings.Join([]string{
		"MD5 (pdb1abc.ent.gz) = d41d8cd98f00b204e9800998ecf8427e",
		"e2fc714c4727ee9395f324cd2e7f331f  pdb1abd.ent.gz",
		"e2fc714c4727ee9395f324cd2e7f331f *pdb1abe.ent.gz",
		"",
		"not a valid line at all",
	}, "\n")

	entries, err := Parse(strings.NewReader(manifest))
	require.NoError(t, err)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", entries["pdb1abc.ent.gz"])
	assert.Equal(t, "e2fc714c4727ee9395f324cd2e7f331f", entries["pdb1abd.ent.gz"])
	assert.Equal(t, "e2fc714c4727ee9395f324cd2e7f331f", entries["pdb1abe.ent.gz"])
	assert.Len(t, entries, 3)
}

func TestParseRejectsPathTraversalNames(t *testing.T) {
	manifest := "d41d8cd98f00b204e9800998ecf8427e  ../../etc/passwd\n"
	entries, err := Parse(strings.NewReader(manifest))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVerifyFileMatchesAndMismatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entry.ent")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	const wantSum = "5d41402abc4b2a76b9719d911017c592" // md5("hello")
	ok := VerifyFile(path, wantSum)
	assert.True(t, ok.OK)

	mismatch := VerifyFile(path, "00000000000000000000000000000000")
	assert.False(t, mismatch.OK)
	assert.False(t, mismatch.Missing)

	missing := VerifyFile(path, "")
	assert.True(t, missing.Missing)
}

func TestCacheFetchIsMemoized(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("d41d8cd98f00b204e9800998ecf8427e  pdb1abc.ent.gz\n"))
	}))
	defer srv.Close()

	cache := NewCache(nil)
	ctx := t.Context()

	first, err := cache.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	second, err := cache.Fetch(ctx, srv.URL)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, hits)
}

func TestCacheFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cache := NewCache(nil)
	_, err := cache.Fetch(t.Context(), srv.URL)
	assert.Error(t, err)
}
