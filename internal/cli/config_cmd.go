package cli

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/config"
	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/profile"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and modify configuration",
	}
	cmd.AddCommand(
		a.newConfigShowCmd(),
		a.newConfigGetCmd(),
		a.newConfigSetCmd(),
		a.newConfigInitCmd(),
		a.newConfigTestMirrorsCmd(),
		a.newConfigProfileCmd(),
	)
	return cmd
}

func (a *app) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", a.cfg)
			return nil
		},
	}
}

func (a *app) newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one dotted config key (e.g. sync.mirror)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := configGet(a.cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func (a *app) newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one dotted config key and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := configSet(&a.cfg, args[0], args[1]); err != nil {
				return err
			}
			return config.Save(a.cfg, config.DefaultPath())
		},
	}
}

func (a *app) newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the compiled-in defaults to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(config.Default(), config.DefaultPath())
		},
	}
}

func (a *app) newConfigTestMirrorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-mirrors",
		Short: "HEAD-probe every mirror and report reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			for _, id := range []mirror.ID{mirror.Rcsb, mirror.Pdbj, mirror.Pdbe, mirror.Wwpdb} {
				m := mirror.Get(id)
				ok, status := probeMirror(cmd.Context(), client, m)
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %v (%s)\n", m.ID, ok, status)
			}
			return nil
		},
	}
}

func probeMirror(ctx context.Context, client *http.Client, m mirror.Mirror) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.HTTPSURL, nil)
	if err != nil {
		return false, err.Error()
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500, resp.Status
}

func (a *app) newConfigProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage named sync/download presets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved profiles",
			RunE: func(cmd *cobra.Command, args []string) error {
				names, err := profile.List()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print one profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := profile.Load(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", p)
				return nil
			},
		},
		newProfileCreateCmd(),
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a saved profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return profile.Delete(args[0])
			},
		},
	)
	return cmd
}

func newProfileCreateCmd() *cobra.Command {
	var (
		mirrorName string
		format     string
		dataTypes  []string
		parallel   int
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new named profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mirrorName == "" {
				return cmdErrorf(pdberr.InvalidInput, "--mirror is required")
			}
			return profile.Create(args[0], profile.Profile{
				Mirror: mirrorName, Format: format, DataTypes: dataTypes, Parallel: parallel,
			})
		},
	}
	cmd.Flags().StringVar(&mirrorName, "mirror", "", "mirror id (rcsb|pdbj|pdbe|wwpdb)")
	cmd.Flags().StringVar(&format, "format", "mmcif", "file format")
	cmd.Flags().StringSliceVar(&dataTypes, "data-type", nil, "data types to sync by default")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "default download parallelism")
	return cmd
}

func profileLoad(name string) (profile.Profile, error) { return profile.Load(name) }

func configGet(cfg config.Config, key string) (string, error) {
	switch key {
	case "paths.base_dir":
		return cfg.Paths.BaseDir, nil
	case "sync.mirror":
		return cfg.Sync.Mirror, nil
	case "sync.format":
		return cfg.Sync.Format, nil
	case "download.parallel":
		return fmt.Sprintf("%d", cfg.Download.Parallel), nil
	case "download.engine":
		return cfg.Download.Engine, nil
	case "mirror_selection.default":
		return cfg.MirrorSelection.Default, nil
	default:
		return "", cmdErrorf(pdberr.Config, "unknown config key: %s", key)
	}
}

func configSet(cfg *config.Config, key, value string) error {
	switch key {
	case "paths.base_dir":
		cfg.Paths.BaseDir = value
	case "sync.mirror":
		cfg.Sync.Mirror = value
	case "sync.format":
		cfg.Sync.Format = value
	case "download.engine":
		cfg.Download.Engine = value
	case "download.parallel":
		n, err := strconv.Atoi(value)
		if err != nil {
			return pdberr.Wrap(pdberr.Config, "download.parallel must be an integer", err)
		}
		cfg.Download.Parallel = n
	case "mirror_selection.default":
		cfg.MirrorSelection.Default = value
	default:
		return cmdErrorf(pdberr.Config, "unknown or read-only config key: %s", key)
	}
	return nil
}
