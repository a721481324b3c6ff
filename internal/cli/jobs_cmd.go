package cli

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/job"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/report"
)

func (a *app) newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs [status|log|cancel|clean]",
		Short: "Background job control",
	}
	cmd.AddCommand(
		a.newJobsStatusCmd(),
		a.newJobsLogCmd(),
		a.newJobsCancelCmd(),
		a.newJobsCleanCmd(),
	)
	return cmd
}

func (a *app) newJobsStatusCmd() *cobra.Command {
	var (
		all     bool
		running bool
	)
	cmd := &cobra.Command{
		Use:   "status [id]",
		Short: "List jobs, or show one job's status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := job.NewManager(cacheDir())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				meta, err := mgr.RefreshStatus(args[0])
				if err != nil {
					return err
				}
				return printJobMeta(cmd, meta)
			}
			metas, err := mgr.List(job.Filter{RunningOnly: running, All: all})
			if err != nil {
				return err
			}
			rows := make([]report.Row, len(metas))
			for i, meta := range metas {
				rows[i] = report.Row{
					"id":      meta.ID,
					"command": meta.Command,
					"status":  meta.Status.String(),
					"started": meta.StartedAt.Format(time.RFC3339),
				}
			}
			return report.WriteText(cmd.OutOrStdout(), []string{"id", "command", "status", "started"}, rows)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include jobs finished more than 24h ago")
	cmd.Flags().BoolVar(&running, "running", false, "show only running jobs")
	return cmd
}

func printJobMeta(cmd *cobra.Command, meta job.Meta) error {
	rows := []report.Row{
		{"field": "id", "value": meta.ID},
		{"field": "command", "value": meta.Command},
		{"field": "status", "value": meta.Status.String()},
		{"field": "started", "value": meta.StartedAt.Format(time.RFC3339)},
	}
	if meta.FinishedAt != nil {
		rows = append(rows, report.Row{"field": "finished", "value": meta.FinishedAt.Format(time.RFC3339)})
	}
	if meta.ExitCode != nil {
		rows = append(rows, report.Row{"field": "exit_code", "value": fmt.Sprintf("%d", *meta.ExitCode)})
	}
	return report.WriteText(cmd.OutOrStdout(), []string{"field", "value"}, rows)
}

func (a *app) newJobsLogCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "log <id>",
		Short: "Print (or follow) a job's captured stdout/stderr",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := job.NewManager(cacheDir())
			if err != nil {
				return err
			}
			id := args[0]
			if err := streamLog(cmd, mgr.StdoutPath(id)); err != nil {
				return err
			}
			if err := streamLog(cmd, mgr.StderrPath(id)); err != nil {
				return err
			}
			if follow {
				return tailLog(cmd, mgr, id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "keep printing new output while the job runs")
	return cmd
}

func streamLog(cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return pdberr.Wrap(pdberr.Io, "open job log", err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		fmt.Fprintln(cmd.OutOrStdout(), s.Text())
	}
	return nil
}

// tailLog polls the job's running status and re-streams newly appended log
// bytes every second until the job reaches a terminal state.
func tailLog(cmd *cobra.Command, mgr *job.Manager, id string) error {
	offset := int64(0)
	if fi, err := os.Stat(mgr.StdoutPath(id)); err == nil {
		offset = fi.Size()
	}
	for {
		meta, err := mgr.RefreshStatus(id)
		if err != nil {
			return err
		}
		f, err := os.Open(mgr.StdoutPath(id))
		if err == nil {
			if _, err := f.Seek(offset, 0); err == nil {
				s := bufio.NewScanner(f)
				for s.Scan() {
					fmt.Fprintln(cmd.OutOrStdout(), s.Text())
				}
			}
			if fi, err := f.Stat(); err == nil {
				offset = fi.Size()
			}
			f.Close()
		}
		if !meta.IsRunning() {
			return nil
		}
		time.Sleep(time.Second)
	}
}

func (a *app) newJobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := job.NewManager(cacheDir())
			if err != nil {
				return err
			}
			return mgr.Cancel(args[0])
		},
	}
}

func (a *app) newJobsCleanCmd() *cobra.Command {
	var olderThan string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove finished job directories older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			dur, err := time.ParseDuration(olderThan)
			if err != nil {
				return cmdErrorf(pdberr.InvalidInput, "invalid --older-than: %v", err)
			}
			mgr, err := job.NewManager(cacheDir())
			if err != nil {
				return err
			}
			n, err := mgr.CleanOldJobs(dur)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d job(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "168h", "age threshold (Go duration syntax, e.g. 24h)")
	return cmd
}
