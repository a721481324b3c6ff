// Command pdb-cli maintains a local mirror of the Protein Data Bank archive:
// bulk rsync, parallel HTTPS download, checksum verification, update
// detection, a continuous watcher, and background job supervision.
//
// Usage:
//
//	pdb-cli init
//	pdb-cli sync [rcsb|pdbj|pdbe|wwpdb]
//	pdb-cli download <ids...>
//	pdb-cli watch --once
//	pdb-cli jobs status
//
// Run `pdb-cli <command> --help` for flags specific to each command.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/APTlantis/pdb-sync/internal/cli"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

func main() {
	os.Exit(run())
}

// run executes the command tree and maps the error returned into exit
// codes: 0 success, 1 general failure, 2 doctor warnings present.
func run() int {
	root := cli.New()
	if err := root.Execute(); err != nil {
		var pe *pdberr.Error
		if errors.As(err, &pe) && pe.Kind == pdberr.DoctorFailed {
			if pe.ExitCode != 0 {
				fmt.Fprintln(os.Stderr, err)
				return pe.ExitCode
			}
			return 2
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
