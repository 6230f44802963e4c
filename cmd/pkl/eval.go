package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pklrun/pkl/internal/config"
	"github.com/pklrun/pkl/internal/eval"
	"github.com/pklrun/pkl/internal/render"
	"github.com/pklrun/pkl/internal/value"
)

// newEvalCmd implements `pkl eval`: load and evaluate a module, then
// print its rendered output (spec scenario 8's output.text/output.files,
// falling back to a plain PCF rendering of the module's own properties
// when it doesn't amend pkl:base's `output`).
//
// Grounded on the teacher's cmd/morfx/main.go -run path: parse flags,
// build a runner, execute once, print to stdout.
func newEvalCmd(cfg *config.Settings) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "eval <module>",
		Short: "Evaluate a Pkl module and print its output.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := moduleURIFromArg(args[0])
			if err != nil {
				return err
			}
			ld, err := buildLoader(cfg, nil)
			if err != nil {
				return err
			}
			defer ld.Close()

			ctx := context.Background()
			v, err := ld.LoadModule(ctx, uri, false)
			if err != nil {
				return err
			}
			if v.Kind != value.KindObject {
				return fmt.Errorf("module `%s` did not evaluate to an object", uri)
			}

			text, err := eval.OutputText(v.Obj)
			if err != nil {
				text, err = render.Module(v.Obj)
				if err != nil {
					return err
				}
			}

			if outputPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			}
			return writeOutputFiles(outputPath, v.Obj, text)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output-path", "o", "",
		"Write rendered output.files to this directory instead of stdout.")
	return cmd
}

// writeOutputFiles materializes output.files (if the module defines it)
// under dir; otherwise it writes the single rendered text to dir as-is.
func writeOutputFiles(dir string, obj *value.Object, fallbackText string) error {
	files, err := eval.OutputFiles(obj)
	if err != nil {
		return writeFile(dir, fallbackText)
	}
	for name, text := range files {
		if err := writeFile(dir+"/"+name, text); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}
