package cli

import (
	"github.com/spf13/cobra"
)

// NewCheckCmd verifies formatting without writing files. With a diff_pager
// configured, differences are shown as unified diffs.
func NewCheckCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:                "check [files...]",
		Short:              "Check that files are formatted",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, argv []string) error {
			ctx := cmd.Context()

			rest, override := extractConfig(argv)
			if override != "" {
				ra.Config = override
			}

			var files []string

			for _, arg := range rest {
				if arg == "-h" || arg == "--help" {
					return runPassthrough(ctx, ra, append([]string{"check"}, rest...))
				}

				files = append(files, arg)
			}

			run, ok, err := newRunner(ra)
			if err != nil {
				return err
			}

			if !ok {
				return fallbackPassthrough(ctx)
			}

			var code int

			if len(files) == 0 {
				code, err = run.CheckAll(ctx)
			} else {
				code, err = run.CheckFiles(ctx, files)
			}

			if err != nil {
				return err
			}

			return NewExitError(code)
		},
	}

	cmd.SetHelpFunc(subPassthroughHelp(ra, "check"))

	return cmd
}
