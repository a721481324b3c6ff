// Package cli builds the pdb-cli command tree on top of
// github.com/spf13/cobra: one file per command (group), a shared app
// context threaded through PersistentPreRunE, RunE functions returning
// wrapped errors instead of calling os.Exit directly.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/APTlantis/pdb-sync/internal/config"
	"github.com/APTlantis/pdb-sync/internal/download"
	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// app carries the resolved configuration and global flag values shared by
// every subcommand.
type app struct {
	cfg       config.Config
	verbose   int // -v/-vv count, mirroring vjache-cie/cmd/cie's counted flag
	pdbDir    string
	logFormat string
	logLevel  string
	jobID     string // set only when re-exec'd by the job supervisor
}

// New builds the root command and its full subtree.
func New() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "pdb-cli",
		Short:         "Maintain a local mirror of the Protein Data Bank archive",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	flags := root.PersistentFlags()
	flags.CountVarP(&a.verbose, "verbose", "v", "increase logging verbosity (-v, -vv)")
	flags.StringVar(&a.pdbDir, "pdb-dir", "", "base directory for the local mirror (overrides config/PDB_DIR)")
	flags.StringVar(&a.logFormat, "log-format", "text", "logging format: text|json")
	flags.StringVar(&a.logLevel, "log-level", "info", "logging level: debug|info|warn|error")
	flags.StringVar(&a.jobID, "_job-id", "", "internal: job id when re-exec'd in the background")
	_ = flags.MarkHidden("_job-id")

	root.AddCommand(
		a.newInitCmd(),
		a.newSyncCmd(),
		a.newDownloadCmd(),
		a.newCopyCmd(),
		a.newListCmd(),
		a.newFindCmd(),
		a.newInfoCmd(),
		a.newValidateCmd(),
		a.newUpdateCmd(),
		a.newWatchCmd(),
		a.newConvertCmd(),
		a.newStatsCmd(),
		a.newTreeCmd(),
		a.newJobsCmd(),
		a.newConfigCmd(),
		a.newEnvCmd(),
	)
	return root
}

// init resolves the layered configuration and installs the slog default
// logger, run once via PersistentPreRunE before any subcommand body.
func (a *app) init() error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return err
	}
	if a.pdbDir != "" {
		cfg.Paths.BaseDir = a.pdbDir
	}
	a.cfg = cfg

	lvl := slog.LevelInfo
	switch strings.ToLower(a.logLevel) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error", "err":
		lvl = slog.LevelError
	}
	if a.verbose > 0 {
		lvl = slog.LevelDebug
	}
	var handler slog.Handler
	if strings.EqualFold(a.logFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	download.RegisterMetrics()
	return nil
}

// resolveMirror maps a CLI mirror/preset argument to a registry Mirror,
// expanding named profiles first (sync's "<preset>|wwpdb|pdbj|pdbe" union).
func (a *app) resolveMirror(arg string) (mirror.Mirror, error) {
	if arg == "" {
		arg = a.cfg.Sync.Mirror
	}
	if id, ok := mirror.Parse(arg); ok {
		return mirror.Get(id), nil
	}
	p, err := loadProfileMirror(arg)
	if err != nil {
		return mirror.Mirror{}, err
	}
	return p, nil
}

func cmdErrorf(kind pdberr.Kind, format string, a ...any) error {
	return pdberr.New(kind, fmt.Sprintf(format, a...))
}

// verboseLevel mirrors vjache-cie/cmd/cie's "-v/-vv" counted verbosity flag,
// exposed here so subcommands can read it without re-deriving it from pflag.
func (a *app) verboseLevel() int { return a.verbose }
