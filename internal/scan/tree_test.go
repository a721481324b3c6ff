package scan

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/pdbid"
)

func mustID(t *testing.T, s string) pdbid.ID {
	t.Helper()
	id, err := pdbid.New(s)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestBuildTreeGroupsByFormatThenBucket(t *testing.T) {
	entries := []Entry{
		{Path: "pdb/ab/pdb1abc.ent", ID: mustID(t, "1abc"), HasID: true, Format: pdbformat.Pdb, Size: 100},
		{Path: "pdb/ab/pdb1abd.ent", ID: mustID(t, "1abd"), HasID: true, Format: pdbformat.Pdb, Size: 200},
		{Path: "mmCIF/zz/9zz9.cif", ID: mustID(t, "9zz9"), HasID: true, Format: pdbformat.Mmcif, Size: 50},
	}

	got := BuildTree("/base", entries)

	want := &DirNode{
		Name: "/base", Path: "/base", FileCount: 3, TotalSize: 350,
		Children: []*DirNode{
			{
				Name: "pdb", Path: "/base/pdb", FileCount: 2, TotalSize: 300,
				Children: []*DirNode{
					{Name: "ab", Path: "/base/pdb/ab", FileCount: 2, TotalSize: 300, IsLeaf: true},
				},
			},
			{
				Name: "mmCIF", Path: "/base/mmCIF", FileCount: 1, TotalSize: 50,
				Children: []*DirNode{
					{Name: "zz", Path: "/base/mmCIF/zz", FileCount: 1, TotalSize: 50, IsLeaf: true},
				},
			},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("BuildTree mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderRespectsTopNAndConnectors(t *testing.T) {
	root := &DirNode{
		Name: "root",
		Children: []*DirNode{
			{Name: "a", FileCount: 3},
			{Name: "b", FileCount: 5},
			{Name: "c", FileCount: 1},
		},
	}
	lines := Render(root, RenderOptions{TopN: 2, CountOnly: true})

	want := []string{
		"root",
		"├── b  (5 files)",
		"└── a  (3 files)",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("Render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderMaxDepthCutsOffChildren(t *testing.T) {
	root := &DirNode{
		Name: "root",
		Children: []*DirNode{
			{Name: "a", FileCount: 1, Children: []*DirNode{{Name: "deep", FileCount: 1}}},
		},
	}
	lines := Render(root, RenderOptions{MaxDepth: 1, CountOnly: true})
	want := []string{"root", "└── a  (1 files)"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("Render with MaxDepth mismatch (-want +got):\n%s", diff)
	}
}
