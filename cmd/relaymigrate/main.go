// Command relaymigrate drives a phase-gated relay migration.
package main

import (
	"os"

	"github.com/roach88/relaymigrate/internal/cli"
)

func main() {
	opts := &cli.RootOptions{}
	cmd := cli.NewRootCommandWith(opts)
	if err := cmd.Execute(); err != nil {
		formatter := &cli.OutputFormatter{Format: opts.Format, Writer: os.Stderr, Verbose: opts.Verbose}
		if opts.Format == "json" {
			formatter.Writer = os.Stdout
		}
		_ = formatter.Report(err)
		os.Exit(cli.GetExitCode(err))
	}
}
