package pdbid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClassic(t *testing.T) {
	id, err := New("1ABC")
	require.NoError(t, err)
	assert.Equal(t, Classic, id.Kind())
	assert.Equal(t, "1abc", id.String())
	assert.Equal(t, "ab", id.MiddleChars())
}

func TestNewExtended(t *testing.T) {
	id, err := New("PDB_00001ABC")
	require.NoError(t, err)
	assert.Equal(t, Extended, id.Kind())
	assert.Equal(t, "pdb_00001abc", id.String())
	assert.Equal(t, "00", id.MiddleChars())
}

func TestNewRejectsClassicNotStartingWithDigit(t *testing.T) {
	_, err := New("aabc")
	require.Error(t, err)
}

func TestNewRejectsBadLength(t *testing.T) {
	for _, s := range []string{"", "1a", "1abcd", "pdb_0001"} {
		_, err := New(s)
		assert.Errorf(t, err, "expected error for %q", s)
	}
}

func TestNewRejectsNonAlnum(t *testing.T) {
	_, err := New("1a-c")
	assert.Error(t, err)
}

func TestNewTrimsAndLowercases(t *testing.T) {
	id, err := New("  1ABC  ")
	require.NoError(t, err)
	assert.Equal(t, "1abc", id.String())
}

// Round-trip invariant: New(s).String() is idempotent under re-parsing.
func TestRoundTripInvariant(t *testing.T) {
	for _, s := range []string{"1abc", "9zz9", "pdb_00001xyz"} {
		id, err := New(s)
		require.NoError(t, err)
		again, err := New(id.String())
		require.NoError(t, err)
		assert.Equal(t, id.String(), again.String())
		assert.Equal(t, id.Kind(), again.Kind())
	}
}
