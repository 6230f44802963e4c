package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pklrun/pkl/internal/config"
	"github.com/pklrun/pkl/internal/render"
	"github.com/pklrun/pkl/internal/testharness"
	"github.com/pklrun/pkl/internal/value"
)

// newTestCmd implements `pkl test`: evaluate a module amending pkl:test
// and run its `facts`/`examples` groups through internal/testharness
// (spec §4.8), printing a failure report and exiting non-zero on any
// failing fact or example.
func newTestCmd(cfg *config.Settings) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "test <module>",
		Short: "Run a Pkl test module's facts and examples.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ld, err := buildLoader(cfg, nil)
			if err != nil {
				return err
			}
			defer ld.Close()
			ctx := context.Background()

			failed := false
			for _, arg := range args {
				uri, err := moduleURIFromArg(arg)
				if err != nil {
					return err
				}
				v, err := ld.LoadModule(ctx, uri, false)
				if err != nil {
					return err
				}
				if v.Kind != value.KindObject {
					return fmt.Errorf("module `%s` did not evaluate to an object", uri)
				}

				report, err := runTestModule(uri, arg, v.Obj, overwrite)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), report.Render())
				if !report.Passed() {
					failed = true
				}
			}
			if failed {
				return fmt.Errorf("one or more facts or examples failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false,
		"Rewrite every example's expected output instead of comparing against it.")
	return cmd
}

// runTestModule extracts `facts` (a Mapping of group name to a Listing
// of Boolean expressions) and `examples` (a Mapping of group name to a
// Listing of rendered values) off an evaluated test module, per §4.8.
func runTestModule(moduleURI, modulePath string, obj *value.Object, overwrite bool) (testharness.Report, error) {
	report := testharness.Report{ModuleURI: moduleURI}

	if obj.HasProperty("facts") {
		facts, err := obj.GetProperty("facts")
		if err != nil {
			return report, err
		}
		if facts.Kind == value.KindObject && facts.Obj.Kind == value.KindMapping {
			for _, key := range facts.Obj.MaterializedEntryKeys() {
				entry, err := facts.Obj.GetEntry(key)
				if err != nil {
					return report, err
				}
				group := testharness.FactsGroup{Name: key.String()}
				if entry.Kind == value.KindObject && entry.Obj.Kind == value.KindListing {
					for i, er := range entry.Obj.ForceElements() {
						res := testharness.FactResult{
							Source:    fmt.Sprintf("%s[%d]", key.String(), i),
							ModuleURI: moduleURI,
							Err:       er.Err,
						}
						if er.Err == nil && er.Value.Kind == value.KindBool {
							res.IsBool = true
							res.Value = er.Value.Bool
						}
						group.Results = append(group.Results, res)
					}
				}
				report.Facts = append(report.Facts, group)
			}
		}
	}

	if obj.HasProperty("examples") {
		examples, err := obj.GetProperty("examples")
		if err != nil {
			return report, err
		}
		if examples.Kind == value.KindObject && examples.Obj.Kind == value.KindMapping {
			for _, key := range examples.Obj.MaterializedEntryKeys() {
				entry, err := examples.Obj.GetEntry(key)
				if err != nil {
					return report, err
				}
				var actual string
				if entry.Kind == value.KindObject && entry.Obj.Kind == value.KindListing {
					for _, v := range entry.Obj.MaterializedElements() {
						rendered, rerr := render.Value(v, 0)
						if rerr != nil {
							return report, rerr
						}
						actual += rendered + "\n"
					}
				} else {
					rendered, rerr := render.Value(entry, 0)
					if rerr != nil {
						return report, rerr
					}
					actual = rendered + "\n"
				}
				res, err := testharness.CompareExample(key.String(), modulePath, actual, overwrite)
				if err != nil {
					return report, err
				}
				report.Examples = append(report.Examples, res)
			}
		}
	}

	return report, nil
}
