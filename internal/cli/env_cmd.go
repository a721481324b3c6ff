package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/doctor"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

var envVarNames = []string{"PDB_DIR", "PDB_SYNC_CONFIG", "PDB_SYNC_MIRROR", "SMTP_HOST", "SMTP_USER", "SMTP_PASS"}

func (a *app) newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect and diagnose the runtime environment",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the pdb-sync environment variables currently set",
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, name := range envVarNames {
					v, ok := os.LookupEnv(name)
					if !ok {
						continue
					}
					if name == "SMTP_PASS" {
						v = "********"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, v)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Print the pdb-sync environment variables as shell export statements",
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, name := range envVarNames {
					v, ok := os.LookupEnv(name)
					if !ok {
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "export %s=%q\n", name, v)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <NAME> <value>",
			Short: "Set an environment variable for this process's children (does not persist)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := os.Setenv(args[0], args[1]); err != nil {
					return pdberr.Wrap(pdberr.Config, "setenv", err)
				}
				return nil
			},
		},
		a.newEnvDoctorCmd(),
	)
	return cmd
}

func (a *app) newEnvDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run environment diagnostics (tool availability, pdb-dir writability, config validity, mirror reachability)",
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := doctor.Run(cmd.Context(), doctor.Options{Config: a.cfg})
			for _, c := range checks {
				status := "ok"
				if !c.OK {
					status = "FAIL"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %-24s %s\n", status, c.Name, c.Message)
			}
			if err := doctor.AsError(checks); err != nil {
				return err
			}
			return nil
		},
	}
}
