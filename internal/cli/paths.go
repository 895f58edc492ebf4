package cli

import (
	"github.com/spf13/cobra"
)

// NewOutputFilePathsCmd lists every file any profile would format, as the
// union of each profile config's coverage.
func NewOutputFilePathsCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "output-file-paths",
		Short:        "List files that would be formatted",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run, ok, err := newRunner(ra)
			if err != nil {
				return err
			}

			if !ok {
				return fallbackPassthrough(cmd.Context())
			}

			return run.OutputFilePaths(cmd.Context())
		},
	}

	return cmd
}
