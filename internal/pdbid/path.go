package pdbid

import (
	"strings"

	"github.com/APTlantis/pdb-sync/internal/pdbformat"
)

// BuildRelativePath returns the divided-archive relative path for id under
// format: "<subdir>/<middle>/<filename>". Classic PDB-format filenames
// carry a literal "pdb" prefix; extended IDs and mmCIF/bcif formats do not.
func BuildRelativePath(id ID, f pdbformat.FileFormat) string {
	return f.Subdir() + "/" + id.MiddleChars() + "/" + Filename(id, f)
}

// Filename returns the archive filename for id under format, e.g.
// "pdb1abc.ent.gz" (classic PDB format) or "1abc.cif.gz" (mmCIF/bcif or an
// extended ID). Shared by the divided-layout path builder here and by the
// mirror package's per-mirror URL builders.
func Filename(id ID, f pdbformat.FileFormat) string {
	switch f.BaseFormat() {
	case pdbformat.Mmcif, pdbformat.Bcif:
		return id.raw + f.Extension()
	default:
		if id.kind == Classic {
			return "pdb" + id.raw + f.Extension()
		}
		return id.raw + f.Extension()
	}
}

// ExtractPdbID parses a PDB ID back out of an archive filename for the
// given format. It never panics; unrecognized patterns return ok=false.
// Handles the format-specific conventions:
//
//	classic pdb:    pdb1abc.ent.gz  -> 1abc
//	extended pdb:   pdb_00001abc.ent.gz -> pdb_00001abc (whole string)
//	mmcif/bcif:     1abc.cif.gz -> 1abc
//	struct factors: r1abcsf.ent.gz -> 1abc
//	assembly:       1abc-assembly3.cif.gz -> 1abc
func ExtractPdbID(filename string, f pdbformat.FileFormat) (ID, bool) {
	name := strings.ToLower(filename)

	// Assembly filenames: "<id>-assembly<N>.<ext>".
	if idx := strings.Index(name, "-assembly"); idx > 0 {
		id, err := New(name[:idx])
		if err != nil {
			return ID{}, false
		}
		return id, true
	}

	// Structure factors: "r<id>sf.ent.gz".
	if strings.HasPrefix(name, "r") && strings.Contains(name, "sf.") {
		rest := strings.TrimPrefix(name, "r")
		if i := strings.Index(rest, "sf."); i > 0 {
			id, err := New(rest[:i])
			if err == nil {
				return id, true
			}
		}
	}

	base := name
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}

	switch f.BaseFormat() {
	case pdbformat.Mmcif, pdbformat.Bcif:
		id, err := New(base)
		if err != nil {
			return ID{}, false
		}
		return id, true
	default:
		stripped := strings.TrimPrefix(base, "pdb")
		id, err := New(stripped)
		if err == nil {
			return id, true
		}
		// Extended IDs keep their "pdb_" prefix; retry without stripping.
		id, err = New(base)
		if err != nil {
			return ID{}, false
		}
		return id, true
	}
}
