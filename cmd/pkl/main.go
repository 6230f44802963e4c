// Command pkl is the thin CLI front-end over the evaluator (spec §1's
// "out of scope... the command-line front-end" — only its interface
// matters here, not a feature-complete Pkl CLI): `pkl eval` renders a
// module's output, `pkl test` runs its facts/examples, `pkl project
// resolve` reports a project's declared dependencies.
//
// Grounded on the teacher's cmd/morfx/main.go (flag parsing feeding a
// Runner) and demo/cmd/main.go's cobra root-plus-subcommand wiring,
// generalized from file-transform operations to module evaluation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pklrun/pkl/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:   "pkl",
		Short: "Evaluate Pkl configuration modules.",
		Long:  "pkl evaluates, tests, and resolves dependencies for Pkl configuration modules.",
	}

	fs, flagCfg := config.BuildFlagSet("pkl")
	root.PersistentFlags().AddFlagSet(fs)
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		config.ApplyFlags(cmd.Flags(), flagCfg)
		return nil
	}

	root.AddCommand(
		newEvalCmd(flagCfg),
		newTestCmd(flagCfg),
		newProjectCmd(flagCfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
