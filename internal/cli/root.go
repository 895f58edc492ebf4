package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mocksoul/dprintx/pkg/log"
)

const (
	cmdName = "dprintx"
	cmdDesc = `Profile-based routing wrapper for the dprint code formatter.`
)

const cmdExamples = `  # Format the whole project through matching profiles
  dprintx fmt

  # Format stdin as if it were the named file
  cat main.go | dprintx fmt --stdin main.go

  # Show which dprint config a file resolves to
  dprintx config src/main.go

  # Serve a single LSP connection across all profiles
  dprintx lsp`

type RootArgs struct {
	LogLevel  string
	LogFormat string
	Config    string
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVar(&ra.Config, "config", "", "Path to the dprintx routing config")

	var err error

	err = cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}
}

// NewRootCmd builds the dprintx command tree. The root command itself does
// not parse flags: anything that is not a known subcommand is relayed
// verbatim to the wrapped dprint binary, with only --config extracted.
func NewRootCmd() *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:                cmdName + " [dprint args...]",
		Short:              cmdDesc,
		Example:            cmdExamples,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		PersistentPreRunE:  setupRun(args),
		RunE: func(cmd *cobra.Command, argv []string) error {
			rest, override := extractConfig(argv)
			if override != "" {
				args.Config = override
			}

			return runPassthrough(cmd.Context(), args, rest)
		},
	}

	args.AddFlags(cmd)
	cmd.AddCommand(
		NewFmtCmd(args),
		NewCheckCmd(args),
		NewConfigCmd(args),
		NewOutputFilePathsCmd(args),
		NewLspCmd(args),
	)

	bindEnvVars(cmd)

	return cmd
}

func setupRun(rc *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if os.Getenv(activeEnv) != "" {
			return fmt.Errorf(
				"%w: create ~/.config/dprint/dprintx.jsonc or ensure the real dprint is in PATH",
				ErrRecursiveCall)
		}

		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), rc.LogLevel, rc.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		return nil
	}
}
