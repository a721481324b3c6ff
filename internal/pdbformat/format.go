// Package pdbformat describes file formats and data types served by the
// PDB archive's divided directory layout.
package pdbformat

import (
	"fmt"
	"strings"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// FileFormat enumerates the file formats pdb-sync can fetch and convert.
type FileFormat int

const (
	Pdb FileFormat = iota
	PdbGz
	Mmcif
	CifGz
	Bcif
	BcifGz
)

var formatNames = map[FileFormat]string{
	Pdb:    "pdb",
	PdbGz:  "pdb_gz",
	Mmcif:  "mmcif",
	CifGz:  "cif_gz",
	Bcif:   "bcif",
	BcifGz: "bcif_gz",
}

func (f FileFormat) String() string { return formatNames[f] }

// Extension returns the on-disk filename suffix for this format, e.g. ".ent".
func (f FileFormat) Extension() string {
	switch f {
	case Pdb:
		return ".ent"
	case PdbGz:
		return ".ent.gz"
	case Mmcif:
		return ".cif"
	case CifGz:
		return ".cif.gz"
	case Bcif:
		return ".bcif"
	case BcifGz:
		return ".bcif.gz"
	default:
		return ""
	}
}

// Subdir returns the divided-archive subdirectory segment for this format.
func (f FileFormat) Subdir() string {
	switch f {
	case Pdb, PdbGz:
		return "pdb"
	case Mmcif, CifGz:
		return "mmCIF"
	case Bcif, BcifGz:
		return "bcif"
	default:
		return ""
	}
}

// Compressed reports whether this format variant is gzip-compressed.
func (f FileFormat) Compressed() bool {
	switch f {
	case PdbGz, CifGz, BcifGz:
		return true
	default:
		return false
	}
}

// BaseFormat returns the uncompressed counterpart of a compressed format
// (or itself, if already uncompressed).
func (f FileFormat) BaseFormat() FileFormat {
	switch f {
	case PdbGz:
		return Pdb
	case CifGz:
		return Mmcif
	case BcifGz:
		return Bcif
	default:
		return f
	}
}

// ParseFileFormat maps a filename (or an extension including its leading
// dot) to the matching FileFormat by case-insensitive suffix. ok is false if
// unrecognized.
func ParseFileFormat(name string) (f FileFormat, ok bool) {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, ".ent.gz"), strings.HasSuffix(n, ".pdb.gz"):
		return PdbGz, true
	case strings.HasSuffix(n, ".cif.gz"):
		return CifGz, true
	case strings.HasSuffix(n, ".bcif.gz"):
		return BcifGz, true
	case strings.HasSuffix(n, ".ent"), strings.HasSuffix(n, ".pdb"):
		return Pdb, true
	case strings.HasSuffix(n, ".cif"):
		return Mmcif, true
	case strings.HasSuffix(n, ".bcif"):
		return Bcif, true
	case strings.HasSuffix(n, ".gz"):
		// generic gz fallback defaults to CifGz, matching the converter's
		// filename-derivation rule for ambiguous compressed inputs.
		return CifGz, true
	default:
		return 0, false
	}
}

// DataType enumerates the archive sections available across mirrors.
// Pdbj and Pdbe additionally serve mirror-exclusive data types (see
// PdbjExclusive/PdbeExclusive).
type DataType int

const (
	Structures DataType = iota
	Assemblies
	Biounit
	StructureFactors
	NmrChemicalShifts
	NmrRestraints
	Obsolete
)

var dataTypeNames = map[DataType]string{
	Structures:        "structures",
	Assemblies:        "assemblies",
	Biounit:           "biounit",
	StructureFactors:  "structure_factors",
	NmrChemicalShifts: "nmr_chemical_shifts",
	NmrRestraints:     "nmr_restraints",
	Obsolete:          "obsolete",
}

func (d DataType) String() string { return dataTypeNames[d] }

// RsyncSubpath returns the rsync-module-relative subpath for this data
// type under the divided archive layout, parameterized by format where the
// upstream tree splits by format (structures, obsolete) and fixed otherwise
// (assemblies, biounit, structure factors, nmr data).
func (d DataType) RsyncSubpath(f FileFormat) string {
	switch d {
	case Structures:
		return "structures/divided/" + f.Subdir()
	case Assemblies:
		return "assemblies/mmCIF"
	case Biounit:
		return "biounit/PDB"
	case StructureFactors:
		return "structures/divided/structure_factors"
	case NmrChemicalShifts:
		return "nmr_restraints_v1/chemical_shifts"
	case NmrRestraints:
		return "nmr_restraints_v1/restraints"
	case Obsolete:
		return "structures/obsolete/" + f.Subdir()
	default:
		return ""
	}
}

// FilenamePattern returns the archive filename for (id, format) under this
// data type. Assemblies carry a wildcard in place of the assembly number
// when assemblyNumber <= 0 (the caller is expected to glob or iterate).
func (d DataType) FilenamePattern(id string, f FileFormat, assemblyNumber int) string {
	switch d {
	case Assemblies:
		num := "*"
		if assemblyNumber > 0 {
			num = fmt.Sprintf("%d", assemblyNumber)
		}
		return id + "-assembly" + num + f.Extension()
	case Biounit:
		num := "*"
		if assemblyNumber > 0 {
			num = fmt.Sprintf("%d", assemblyNumber)
		}
		return "pdb" + id + ".pdb" + num + ".gz"
	case StructureFactors:
		return "r" + id + "sf.ent.gz"
	case NmrChemicalShifts:
		return id + ".str"
	case NmrRestraints:
		return id + ".mr"
	default:
		if f.BaseFormat() == Mmcif || f.BaseFormat() == Bcif {
			return id + f.Extension()
		}
		return "pdb" + id + f.Extension()
	}
}

// PdbjExclusive lists the data type names served only by the PDBj mirror.
var PdbjExclusive = []string{
	"emdb", "pdb_ihm", "derived", "bsma", "efsite",
	"pdb_nextgen", "pdb_versioned", "pdbjplus", "promode", "uniprot", "xrda",
}

// PdbeExclusive lists the data type names served only by the PDBe mirror.
var PdbeExclusive = []string{
	"assemblies", "foldseek", "fragment_screening", "graphdb", "nmr",
	"pdb_assemblies_analysis", "pdb_uncompressed", "pdbechem", "sifts",
	"status", "updated_mmcif",
}

// ValidateDataTypeMirror rejects a mirror-exclusive --data-type value
// requested against any mirror other than the one that serves it (PDBj's
// PdbjExclusive, PDBe's PdbeExclusive). typeName not appearing in either
// list is unrestricted and always passes. mirrorName is the lowercase
// mirror id ("rcsb", "pdbj", "pdbe", "wwpdb").
func ValidateDataTypeMirror(typeName, mirrorName string) error {
	for _, n := range PdbjExclusive {
		if n == typeName && mirrorName != "pdbj" {
			return pdberr.New(pdberr.InvalidInput, fmt.Sprintf("data type %q is only available from the pdbj mirror, not %q", typeName, mirrorName))
		}
	}
	for _, n := range PdbeExclusive {
		if n == typeName && mirrorName != "pdbe" {
			return pdberr.New(pdberr.InvalidInput, fmt.Sprintf("data type %q is only available from the pdbe mirror, not %q", typeName, mirrorName))
		}
	}
	return nil
}
