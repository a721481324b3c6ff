package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
)

func TestParseKnownMirrors(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want ID
	}{
		{"rcsb", Rcsb},
		{"PDBJ", Pdbj},
		{"  pdbe ", Pdbe},
		{"wwpdb", Wwpdb},
	} {
		got, ok := Parse(tc.in)
		require.Truef(t, ok, "Parse(%q)", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	_, ok := Parse("not-a-mirror")
	assert.False(t, ok)
}

func TestStructureURLPerMirrorConventions(t *testing.T) {
	id, err := pdbid.New("1abc")
	require.NoError(t, err)

	rcsb := Get(Rcsb)
	assert.Equal(t, "https://files.rcsb.org/download/1abc.ent", rcsb.StructureURL(pdbformat.Pdb, id))

	pdbj := Get(Pdbj)
	assert.Equal(t, "https://ftp.pdbj.org/rest/downloadPDBfile?format=pdb&id=1abc", pdbj.StructureURL(pdbformat.Pdb, id))

	pdbe := Get(Pdbe)
	assert.Equal(t, "https://ftp.ebi.ac.uk/pdbe/entry-files/pdb1abc.ent", pdbe.StructureURL(pdbformat.Pdb, id))
}

func TestStructureURLExtendedIDOmitsPdbPrefixOnPdbe(t *testing.T) {
	id, err := pdbid.New("pdb_00001abc")
	require.NoError(t, err)
	pdbe := Get(Pdbe)
	assert.Equal(t, "https://ftp.ebi.ac.uk/pdbe/entry-files/pdb_00001abc.ent", pdbe.StructureURL(pdbformat.Pdb, id))
}

func TestChecksumsURLPerMirror(t *testing.T) {
	assert.Equal(t, "https://files.rcsb.org/pub/pdb/data/structures/divided/pdb/ab/CHECKSUMS",
		Get(Rcsb).ChecksumsURL("structures/divided/pdb/ab"))
	assert.Equal(t, "https://ftp.wwpdb.org/pub/pdb/data/structures/divided/pdb/ab/CHECKSUMS",
		Get(Wwpdb).ChecksumsURL("structures/divided/pdb/ab"))
}

func TestDownloadURLDividedLayout(t *testing.T) {
	id, err := pdbid.New("1abc")
	require.NoError(t, err)
	url := Get(Rcsb).DownloadURL(pdbformat.PdbGz, id)
	assert.Equal(t, "https://files.rcsb.org/pub/pdb/data/structures/divided/pdb/ab/pdb1abc.ent.gz", url)
}
