// Package mirror holds the static registry of PDB archive mirrors and the
// URL builders specific to each.
package mirror

import (
	"fmt"
	"strings"

	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
)

// ID identifies one of the four supported upstream mirrors.
type ID int

const (
	Rcsb ID = iota
	Pdbj
	Pdbe
	Wwpdb
)

var idNames = map[ID]string{
	Rcsb:  "rcsb",
	Pdbj:  "pdbj",
	Pdbe:  "pdbe",
	Wwpdb: "wwpdb",
}

func (m ID) String() string { return idNames[m] }

// Parse resolves a mirror id from its lowercase name.
func Parse(s string) (ID, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rcsb":
		return Rcsb, true
	case "pdbj":
		return Pdbj, true
	case "pdbe":
		return Pdbe, true
	case "wwpdb":
		return Wwpdb, true
	default:
		return 0, false
	}
}

// Mirror describes the reachable endpoints for one upstream.
type Mirror struct {
	ID       ID
	RsyncURL string
	HTTPSURL string
}

// Registry is the fixed set of mirrors pdb-sync knows how to reach.
var Registry = map[ID]Mirror{
	Rcsb:  {ID: Rcsb, RsyncURL: "rsync.rcsb.org::ftp", HTTPSURL: "https://files.rcsb.org/pub/pdb"},
	Pdbj:  {ID: Pdbj, RsyncURL: "data.pdbj.org::ftp", HTTPSURL: "https://ftp.pdbj.org/pub/pdb"},
	Pdbe:  {ID: Pdbe, RsyncURL: "rsync.ebi.ac.uk::pub/databases/pdb", HTTPSURL: "https://ftp.ebi.ac.uk/pub/databases/pdb"},
	Wwpdb: {ID: Wwpdb, RsyncURL: "rsync.wwpdb.org::ftp", HTTPSURL: "https://ftp.wwpdb.org/pub/pdb"},
}

// Get looks up a mirror by id.
func Get(id ID) Mirror { return Registry[id] }

// DownloadURL builds the HTTPS URL for one (format, id) pair under the
// divided-archive layout: <base>/data/structures/divided/<subdir>/<middle>/<filename>.
func (m Mirror) DownloadURL(f pdbformat.FileFormat, id pdbid.ID) string {
	return fmt.Sprintf("%s/data/%s/%s/%s",
		m.HTTPSURL, pdbformat.Structures.RsyncSubpath(f), id.MiddleChars(), pdbid.Filename(id, f))
}

// DataURL builds the HTTPS URL for one (dataType, format, id) triple,
// honoring each data type's own subpath and filename convention. assembly
// selects a specific assembly number for Assemblies/Biounit data types (0
// leaves the wildcard in place, e.g. for local glob matching).
func (m Mirror) DataURL(dt pdbformat.DataType, f pdbformat.FileFormat, id pdbid.ID, assembly int) string {
	return fmt.Sprintf("%s/data/%s/%s/%s",
		m.HTTPSURL, dt.RsyncSubpath(f), id.MiddleChars(), dt.FilenamePattern(id.String(), f, assembly))
}

// StructureURL builds the per-mirror HTTPS template for fetching a single
// structure entry, following each mirror's own convention rather than the
// shared divided-archive layout used by ChecksumsURL/RsyncSource:
//
//	RCSB:   https://files.rcsb.org/download/{id}.{ext}  (bcif served from models.rcsb.org)
//	PDBj:   query-string form, ?format={fmt}&id={id}
//	PDBe:   direct file, pdb{id}.ent (classic) / {id}.ent (extended)
//	wwPDB:  divided layout with middle-chars bucket, using the requested
//	        format's own extension (no .gz is added for an uncompressed format)
func (m Mirror) StructureURL(f pdbformat.FileFormat, id pdbid.ID) string {
	root := m.httpsRoot()
	switch m.ID {
	case Rcsb:
		if f.BaseFormat() == pdbformat.Bcif {
			host := strings.Replace(root, "://files.rcsb.org", "://models.rcsb.org", 1)
			return fmt.Sprintf("%s/%s.bcif", host, id.String())
		}
		ext := strings.TrimPrefix(f.Extension(), ".")
		return fmt.Sprintf("%s/download/%s.%s", root, id.String(), ext)
	case Pdbj:
		return fmt.Sprintf("%s/rest/downloadPDBfile?format=%s&id=%s", root, f.BaseFormat().String(), id.String())
	case Pdbe:
		name := id.String() + ".ent"
		if id.Kind() == pdbid.Classic {
			name = "pdb" + name
		}
		return fmt.Sprintf("%s/pdbe/entry-files/%s", root, name)
	case Wwpdb:
		return m.DownloadURL(f, id)
	default:
		return m.DownloadURL(f, id)
	}
}

// httpsRoot strips the shared "/pub/pdb"-style suffix off the registry's
// divided-layout base URL to recover the mirror's bare HTTPS origin, which
// per-entry endpoints (StructureURL) are rooted at instead. Falls back to
// HTTPSURL unchanged when no known suffix matches, so tests that override
// HTTPSURL with a bare httptest origin still resolve correctly.
func (m Mirror) httpsRoot() string {
	for _, suffix := range []string{"/pub/databases/pdb", "/pub/pdb"} {
		if strings.HasSuffix(m.HTTPSURL, suffix) {
			return strings.TrimSuffix(m.HTTPSURL, suffix)
		}
	}
	return m.HTTPSURL
}

// ChecksumsURL builds the URL of the CHECKSUMS manifest for a given
// subpath (the divided-archive directory containing the target file).
// Each mirror publishes CHECKSUMS at a slightly different path relative to
// its own root, mirroring the upstream layout quirks.
func (m Mirror) ChecksumsURL(subpath string) string {
	switch m.ID {
	case Wwpdb:
		return fmt.Sprintf("%s/data/%s/CHECKSUMS", m.HTTPSURL, subpath)
	case Rcsb:
		return fmt.Sprintf("https://files.rcsb.org/pub/pdb/data/%s/CHECKSUMS", subpath)
	case Pdbj:
		return fmt.Sprintf("https://ftp.pdbj.org/pub/pdb/data/%s/CHECKSUMS", subpath)
	case Pdbe:
		return fmt.Sprintf("https://ftp.ebi.ac.uk/pub/databases/pdb/data/%s/CHECKSUMS", subpath)
	default:
		return ""
	}
}

// RsyncSource builds the rsync source path for one data type/format under
// this mirror. PDBj roots its rsync module differently from the other
// three, per the original upstream layout quirk this mirrors.
func (m Mirror) RsyncSource(dt pdbformat.DataType, f pdbformat.FileFormat) string {
	subpath := dt.RsyncSubpath(f)
	if m.ID == Pdbj {
		return fmt.Sprintf("%s/pub/pdb/data/%s/", strings.TrimSuffix(m.RsyncURL, "::ftp")+"::rsync", subpath)
	}
	return fmt.Sprintf("%s/data/%s/", m.RsyncURL, subpath)
}
