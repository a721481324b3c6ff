// Package pdbid parses and normalizes Protein Data Bank identifiers.
package pdbid

import (
	"strings"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// Kind distinguishes the two PDB identifier shapes in current use.
type Kind int

const (
	// Classic is the legacy 4-character identifier, e.g. "1abc".
	Classic Kind = iota
	// Extended is the 12-character "pdb_" + 8 alphanumeric identifier
	// introduced for the expanded identifier space.
	Extended
)

const (
	classicLen  = 4
	extendedLen = 12
	extPrefix   = "pdb_"
)

// ID is a normalized PDB identifier. The zero value is not valid; use New.
type ID struct {
	kind Kind
	raw  string // always lowercase
}

// New parses and normalizes s into an ID. Input is trimmed and lowercased
// before validation. Returns InvalidPdbId on malformed input.
func New(s string) (ID, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	switch len(t) {
	case classicLen:
		if t[0] < '0' || t[0] > '9' {
			return ID{}, pdberr.New(pdberr.InvalidPdbId, "classic id must start with a digit: "+s)
		}
		if !isAlnum(t) {
			return ID{}, pdberr.New(pdberr.InvalidPdbId, "not alphanumeric: "+s)
		}
		return ID{kind: Classic, raw: t}, nil
	case extendedLen:
		if !strings.HasPrefix(t, extPrefix) {
			return ID{}, pdberr.New(pdberr.InvalidPdbId, "extended id missing pdb_ prefix: "+s)
		}
		suffix := t[len(extPrefix):]
		if !isAlnum(suffix) {
			return ID{}, pdberr.New(pdberr.InvalidPdbId, "extended id suffix not alphanumeric: "+s)
		}
		return ID{kind: Extended, raw: t}, nil
	default:
		return ID{}, pdberr.New(pdberr.InvalidPdbId, "unexpected length: "+s)
	}
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// String returns the normalized (lowercase) identifier.
func (id ID) String() string { return id.raw }

// Kind reports whether this is a Classic or Extended identifier.
func (id ID) Kind() Kind { return id.kind }

// MiddleChars returns the two-character bucket used for the divided-archive
// directory layout: id[1:3] for Classic, id[6:8] for Extended (the third
// and fourth characters after the "pdb_" prefix).
func (id ID) MiddleChars() string {
	switch id.kind {
	case Classic:
		return id.raw[1:3]
	case Extended:
		return id.raw[len(extPrefix)+2 : len(extPrefix)+4]
	default:
		return ""
	}
}
