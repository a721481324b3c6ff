package scan

import (
	"fmt"
	"sort"
)

// DirNode is one directory in the rendered tree.
type DirNode struct {
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	FileCount int        `json:"file_count"`
	TotalSize int64      `json:"total_size"`
	IsLeaf    bool       `json:"is_leaf"`
	Children  []*DirNode `json:"children,omitempty"`
}

// BuildTree groups entries into a DirNode tree rooted at base, two levels
// deep under the format subdirs (<subdir>/<bucket>), matching the divided
// archive's fixed shape.
func BuildTree(base string, entries []Entry) *DirNode {
	root := &DirNode{Name: base, Path: base}
	subdirs := map[string]*DirNode{}

	for _, e := range entries {
		subdirName := e.Format.Subdir()
		if subdirName == "" {
			subdirName = "other"
		}
		sd, ok := subdirs[subdirName]
		if !ok {
			sd = &DirNode{Name: subdirName, Path: base + "/" + subdirName}
			subdirs[subdirName] = sd
			root.Children = append(root.Children, sd)
		}

		bucket := "??"
		if e.HasID {
			bucket = e.ID.MiddleChars()
		}
		var bd *DirNode
		for _, c := range sd.Children {
			if c.Name == bucket {
				bd = c
				break
			}
		}
		if bd == nil {
			bd = &DirNode{Name: bucket, Path: sd.Path + "/" + bucket, IsLeaf: true}
			sd.Children = append(sd.Children, bd)
		}
		bd.FileCount++
		bd.TotalSize += e.Size
	}

	for _, sd := range subdirs {
		for _, bd := range sd.Children {
			sd.FileCount += bd.FileCount
			sd.TotalSize += bd.TotalSize
		}
		root.FileCount += sd.FileCount
		root.TotalSize += sd.TotalSize
	}
	return root
}

// RenderOptions configures Render.
type RenderOptions struct {
	MaxDepth   int // 0 = unlimited
	SizeOnly   bool
	CountOnly  bool
	TopN       int // 0 = show all
	SortBySize bool
}

// Render produces the text lines of a rendered tree, using the classic
// box-drawing connectors ("├── ", "└── "). Children at every level are
// sorted descending by the configured metric; a set of leaf directories
// (nodes without children) is truncated to TopN.
func Render(root *DirNode, opts RenderOptions) []string {
	var lines []string
	lines = append(lines, root.Name)
	renderChildren(&lines, root.Children, "", 1, opts)
	return lines
}

func renderChildren(lines *[]string, children []*DirNode, prefix string, depth int, opts RenderOptions) {
	if opts.MaxDepth > 0 && depth > opts.MaxDepth {
		return
	}
	sorted := sortedChildren(children, opts)
	leaves := true
	for _, c := range sorted {
		if len(c.Children) > 0 {
			leaves = false
			break
		}
	}
	if opts.TopN > 0 && leaves && len(sorted) > opts.TopN {
		sorted = sorted[:opts.TopN]
	}
	for i, c := range sorted {
		last := i == len(sorted)-1
		connector := "├── "
		nextPrefix := prefix + "│   "
		if last {
			connector = "└── "
			nextPrefix = prefix + "    "
		}
		*lines = append(*lines, prefix+connector+label(c, opts))
		renderChildren(lines, c.Children, nextPrefix, depth+1, opts)
	}
}

func sortedChildren(children []*DirNode, opts RenderOptions) []*DirNode {
	out := make([]*DirNode, len(children))
	copy(out, children)
	sort.Slice(out, func(i, j int) bool {
		if opts.SortBySize {
			return out[i].TotalSize > out[j].TotalSize
		}
		return out[i].FileCount > out[j].FileCount
	})
	return out
}

func label(n *DirNode, opts RenderOptions) string {
	switch {
	case opts.SizeOnly:
		return fmt.Sprintf("%s  %s", n.Name, humanSize(n.TotalSize))
	case opts.CountOnly:
		return fmt.Sprintf("%s  (%d files)", n.Name, n.FileCount)
	default:
		return fmt.Sprintf("%s  (%d files, %s)", n.Name, n.FileCount, humanSize(n.TotalSize))
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
