package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pklrun/pkl/internal/cache"
	"github.com/pklrun/pkl/internal/config"
	"github.com/pklrun/pkl/internal/project"
)

// newProjectCmd implements `pkl project resolve`: read a PklProject
// manifest and its sibling PklProject.deps.json and print the resolved
// dependency set (spec §6.2/§6.3), persisting each resolved dependency
// into the package-record Store so a later `pkl eval` run's
// PackageFactory can trust an already-verified checksum without
// re-reading this project's deps.json.
//
// Grounded on the teacher's providers.go listing command: load a
// resource once, print a stable, sorted summary of what it contains.
func newProjectCmd(cfg *config.Settings) *cobra.Command {
	root := &cobra.Command{
		Use:   "project",
		Short: "Inspect a PklProject manifest.",
	}
	root.AddCommand(newProjectResolveCmd(cfg))
	return root
}

func newProjectResolveCmd(cfg *config.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <PklProject.json>",
		Short: "Print a project's resolved dependencies.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := project.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resolver.Manifest().String())

			if err := os.MkdirAll(cfg.ModuleCacheDir, 0o755); err != nil {
				return err
			}
			store, err := cache.OpenStore(filepath.Join(cfg.ModuleCacheDir, "packages.db"), false)
			if err != nil {
				return err
			}
			defer store.Close()

			deps := resolver.Dependencies()
			names := make([]string, 0, len(deps))
			for name := range deps {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				d := deps[name]
				if d.Remote {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s (sha256:%s)\n", name, d.URI, d.Checksum)
					if err := store.Put(cache.PackageRecord{URI: d.URI, Checksum: d.Checksum, ResolvedFrom: "remote"}); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s (local)\n", name, d.Path)
					if err := store.Put(cache.PackageRecord{URI: d.Path, LocalPath: d.Path, ResolvedFrom: "local"}); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}
