package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/scan"
)

func (a *app) newTreeCmd() *cobra.Command {
	var (
		depth     int
		formatArg string
		sizeOnly  bool
		countOnly bool
		top       int
		sortBy    string
		outputArg string
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Render the local mirror's directory tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := scan.Walk(a.cfg.Paths.BaseDir)
			if err != nil {
				return err
			}
			if formatArg != "" {
				f, ok := parseFileFormat(formatArg, "")
				if !ok {
					return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", formatArg)
				}
				entries = scan.Match(entries, nil, &f)
			}

			root := scan.BuildTree(a.cfg.Paths.BaseDir, entries)
			opts := scan.RenderOptions{
				MaxDepth:   depth,
				SizeOnly:   sizeOnly,
				CountOnly:  countOnly,
				TopN:       top,
				SortBySize: sortBy == "size",
			}
			lines := scan.Render(root, opts)

			if outputArg == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(root)
			}
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "maximum depth to render (0 = unlimited)")
	cmd.Flags().StringVar(&formatArg, "format", "", "restrict to file format: pdb|mmcif|bcif")
	cmd.Flags().BoolVar(&sizeOnly, "size", false, "show only size per node")
	cmd.Flags().BoolVar(&countOnly, "count", false, "show only file count per node")
	cmd.Flags().IntVar(&top, "top", 0, "show only the top N children per level")
	cmd.Flags().StringVar(&sortBy, "sort-by", "count", "sort children by: count|size")
	cmd.Flags().StringVar(&outputArg, "output", "text", "output format: text|json")
	return cmd
}
