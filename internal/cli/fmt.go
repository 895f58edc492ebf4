package cli

import (
	"github.com/spf13/cobra"
)

// NewFmtCmd formats stdin, explicit files, or the whole project. Flags are
// parsed by hand so that unknown ones travel to dprint untouched and
// -h/--help show dprint's own fmt help.
func NewFmtCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:                "fmt [--stdin <file>] [files...]",
		Short:              "Format files through their matching profiles",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, argv []string) error {
			ctx := cmd.Context()

			rest, override := extractConfig(argv)
			if override != "" {
				ra.Config = override
			}

			var (
				stdin string
				files []string
			)

			for i := 0; i < len(rest); i++ {
				switch rest[i] {
				case "--stdin":
					if i+1 < len(rest) {
						stdin = rest[i+1]
						i++
					}
				case "-h", "--help":
					return runPassthrough(ctx, ra, append([]string{"fmt"}, rest...))
				default:
					files = append(files, rest[i])
				}
			}

			run, ok, err := newRunner(ra)
			if err != nil {
				return err
			}

			if !ok {
				return fallbackPassthrough(ctx)
			}

			var code int

			switch {
			case stdin != "":
				code, err = run.FmtStdin(ctx, stdin, cmd.InOrStdin(), cmd.OutOrStdout())
			case len(files) == 0:
				code, err = run.FmtAll(ctx)
			default:
				code, err = run.FmtFiles(ctx, files)
			}

			if err != nil {
				return err
			}

			return NewExitError(code)
		},
	}

	cmd.SetHelpFunc(subPassthroughHelp(ra, "fmt"))

	return cmd
}
