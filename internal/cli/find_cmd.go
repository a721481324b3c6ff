package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/scan"
)

func (a *app) newFindCmd() *cobra.Command {
	var (
		formatArg   string
		allFormats  bool
		existsMode  bool
		missingMode bool
		quiet       bool
		countOnly   bool
	)
	cmd := &cobra.Command{
		Use:   "find <patterns...>",
		Short: "Locate local files by ID or glob",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := scan.Walk(a.cfg.Paths.BaseDir)
			if err != nil {
				return err
			}

			var formatFilter *pdbformat.FileFormat
			if formatArg != "" && !allFormats {
				f, ok := parseFileFormat(formatArg, "")
				if !ok {
					return cmdErrorf(pdberr.InvalidInput, "unknown format: %s", formatArg)
				}
				formatFilter = &f
			}
			matched := scan.Match(entries, args, formatFilter)

			if existsMode || missingMode {
				allPresent := true
				for _, p := range args {
					present := len(scan.Match(matched, []string{p}, nil)) > 0
					if present == missingMode {
						continue
					}
					if !quiet {
						if present {
							fmt.Fprintf(cmd.OutOrStdout(), "%s: present\n", p)
						} else {
							fmt.Fprintf(cmd.OutOrStdout(), "%s: missing\n", p)
						}
					}
					if existsMode && !present {
						allPresent = false
					}
				}
				if existsMode && !allPresent {
					return cmdErrorf(pdberr.NotFound, "one or more ids not found locally")
				}
				return nil
			}

			if countOnly {
				fmt.Fprintln(cmd.OutOrStdout(), len(matched))
				return nil
			}
			if quiet {
				return nil
			}
			for _, e := range matched {
				fmt.Fprintln(cmd.OutOrStdout(), e.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&formatArg, "format", "", "restrict to file format: pdb|mmcif|bcif")
	cmd.Flags().BoolVar(&allFormats, "all-formats", false, "search across every format")
	cmd.Flags().BoolVar(&existsMode, "exists", false, "exit nonzero if any pattern has no local match")
	cmd.Flags().BoolVar(&missingMode, "missing", false, "print only patterns with no local match")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress normal output, keep exit status")
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the match count")
	return cmd
}
