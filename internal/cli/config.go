package cli

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mocksoul/dprintx/pkg/routing"
)

// NewConfigCmd shows the resolved routing table, or the dprint config one
// file would be formatted with.
func NewConfigCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "config [file]",
		Short:        "Show resolved profiles and match rules",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, m, ok, err := newMatcher(ra)
			if err != nil {
				return err
			}

			if !ok {
				return fallbackPassthrough(cmd.Context())
			}

			if len(args) == 1 {
				return showFileConfig(cmd, m, args[0])
			}

			showRoutingTable(cmd, cfg)

			return nil
		},
	}

	return cmd
}

func showFileConfig(cmd *cobra.Command, m resolver, file string) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}

	res, err := m.Resolve(abs)
	if err != nil {
		return fmt.Errorf("resolving config for %s: %w", file, err)
	}

	switch {
	case res == nil:
		cmd.Println("(no matching profile)")
	case res.Ignore:
		cmd.Println("(ignored)")
	default:
		cmd.Println(res.ConfigPath)
	}

	return nil
}

func showRoutingTable(cmd *cobra.Command, cfg *routing.Config) {
	cmd.Printf("dprint: %s\n", cfg.DprintPath())
	cmd.Println("profiles:")

	names := slices.Sorted(maps.Keys(cfg.Profiles))
	for _, name := range names {
		path := cfg.Profiles[name]
		if path == nil {
			cmd.Printf("  %s: (ignore)\n", name)

			continue
		}

		cmd.Printf("  %s: %s\n", name, routing.ExpandTilde(*path))
	}

	cmd.Println("match rules:")

	for _, r := range cfg.Match {
		cmd.Printf("  %s -> %s\n", r.Pattern, r.Profile)
	}

	if len(cfg.MatchContent) > 0 {
		cmd.Println("content rules:")

		for _, r := range cfg.MatchContent {
			cmd.Printf("  %s -> %s\n", r.Pattern, r.Profile)
		}
	}
}

// resolver routes one path to its profile resolution.
type resolver interface {
	Resolve(path string) (*routing.Resolution, error)
}
