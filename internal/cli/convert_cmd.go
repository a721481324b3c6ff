package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/convert"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
	"github.com/APTlantis/pdb-sync/internal/report"
)

func (a *app) newConvertCmd() *cobra.Command {
	var (
		decompress bool
		compress   bool
		toArg      string
		fromArg    string
		dest       string
		inPlace    bool
		stdinMode  bool
		parallel   int
	)
	cmd := &cobra.Command{
		Use:   "convert <files...>",
		Short: "Compress, decompress, or transform local files",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := append([]string{}, args...)
			if stdinMode {
				files = append(files, readLines(os.Stdin)...)
			}
			if len(files) == 0 {
				return cmdErrorf(pdberr.InvalidInput, "no files given (pass args or --stdin)")
			}
			_ = fromArg // format is auto-detected by extension; --from only documents intent

			op := convert.OpConvertFormat
			var toFormat pdbformat.FileFormat
			switch {
			case decompress:
				op = convert.OpDecompress
			case compress:
				op = convert.OpCompress
			case toArg != "":
				f, ok := parseFileFormat(toArg, "")
				if !ok {
					return cmdErrorf(pdberr.InvalidInput, "unknown --to format: %s", toArg)
				}
				toFormat = f
			default:
				return cmdErrorf(pdberr.InvalidInput, "one of --decompress, --compress, or --to is required")
			}

			tasks := make([]convert.Task, 0, len(files))
			rows := make([]report.Row, 0, len(files))
			for _, src := range files {
				d, err := convert.BuildDestPath(src, dest, op, toFormat, inPlace || dest == "")
				if err != nil {
					rows = append(rows, report.Row{"source": src, "dest": "", "status": "failed: " + errString(err)})
					continue
				}
				tasks = append(tasks, convert.Task{Source: src, Dest: d, Operation: op, ToFormat: toFormat})
			}

			if parallel <= 0 {
				parallel = a.cfg.Download.Parallel
			}
			c := convert.New(parallel)
			results := c.ConvertMany(cmd.Context(), tasks)

			for _, r := range results {
				status := "converted"
				switch {
				case r.IsFailed():
					status = "failed: " + errString(r.Err)
				case r.IsSkipped():
					status = "skipped"
				}
				rows = append(rows, report.Row{"source": r.Task.Source, "dest": r.Task.Dest, "status": status})
			}
			return report.WriteText(cmd.OutOrStdout(), []string{"source", "dest", "status"}, rows)
		},
	}
	cmd.Flags().BoolVar(&decompress, "decompress", false, "gunzip the input files")
	cmd.Flags().BoolVar(&compress, "compress", false, "gzip the input files")
	cmd.Flags().StringVar(&toArg, "to", "", "target format for a gemmi-backed format conversion")
	cmd.Flags().StringVar(&fromArg, "from", "", "source format (not used; the format is detected from the file extension)")
	cmd.Flags().StringVar(&dest, "dest", "", "destination directory (default: alongside source)")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "write the output next to the source file (the source is kept)")
	cmd.Flags().BoolVar(&stdinMode, "stdin", false, "read additional file paths from stdin, one per line")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent conversions (default: config download.parallel)")
	return cmd
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
