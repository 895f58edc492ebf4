package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mocksoul/dprintx/pkg/lsp"
)

// NewLspCmd serves one editor LSP connection on stdio, multiplexed across
// one dprint backend per effective config.
func NewLspCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "lsp",
		Short:        "Proxy a single LSP connection across all profiles",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, m, ok, err := newMatcher(ra)
			if err != nil {
				return err
			}

			if !ok {
				return fallbackPassthrough(cmd.Context())
			}

			proxy := lsp.NewProxy(cfg, m, os.Stdout)

			return proxy.Run(cmd.Context(), os.Stdin)
		},
	}

	return cmd
}
