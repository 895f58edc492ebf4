package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mocksoul/dprintx/pkg/dprint"
	"github.com/mocksoul/dprintx/pkg/matcher"
	"github.com/mocksoul/dprintx/pkg/routing"
	"github.com/mocksoul/dprintx/pkg/runner"
)

// activeEnv marks child dprint processes so that a dprintx symlinked or
// renamed to `dprint` cannot call itself forever.
const activeEnv = "DPRINTX_ACTIVE"

// ErrRecursiveCall is returned when dprintx detects it was spawned by
// another dprintx instance.
var ErrRecursiveCall = errors.New("recursive call detected")

// helpSection is appended to dprint's own help output on passthrough.
const helpSection = `
DPRINTX OPTIONS:
  --config <PATH>     Override dprintx config path (~/.config/dprint/dprintx.jsonc)

DPRINTX SUBCOMMANDS:
  config              Show resolved dprintx profiles and match rules.
  config <FILE>       Show which dprint config would be used for a file.

DPRINTX CONFIG (dprintx.jsonc):
  diff_pager          Pager for ` + "`dprint check`" + ` diffs (e.g. "delta -s").
`

// extractConfig pulls --config <path> or --config=<path> out of raw args,
// wherever it appears. The remaining args are returned in order.
func extractConfig(args []string) ([]string, string) {
	var (
		rest   []string
		config string
	)

	for i := 0; i < len(args); i++ {
		if args[i] == "--config" && i+1 < len(args) {
			config = args[i+1]
			i++

			continue
		}

		if val, ok := strings.CutPrefix(args[i], "--config="); ok {
			config = val

			continue
		}

		rest = append(rest, args[i])
	}

	return rest, config
}

// loadRouting loads the routing config. An explicit override must exist and
// be valid; the default path may be absent, in which case cfg is nil.
func loadRouting(ra *RootArgs) (*routing.Config, error) {
	if ra.Config != "" {
		return routing.Load(ra.Config)
	}

	return routing.LoadDefault()
}

// newRunner builds the matcher and runner for the loaded routing config. A
// false second return means no routing config exists and the caller should
// fall back to [fallbackPassthrough].
func newRunner(ra *RootArgs) (*runner.Runner, bool, error) {
	cfg, m, ok, err := newMatcher(ra)
	if err != nil || !ok {
		return nil, ok, err
	}

	return runner.New(cfg, m), true, nil
}

func newMatcher(ra *RootArgs) (*routing.Config, *matcher.Matcher, bool, error) {
	cfg, err := loadRouting(ra)
	if err != nil {
		return nil, nil, false, err
	}

	if cfg == nil {
		return nil, nil, false, nil
	}

	m, err := matcher.New(cfg)
	if err != nil {
		return nil, nil, false, err
	}

	return cfg, m, true, nil
}

// fallbackPassthrough hands the entire invocation to a dprint found on
// PATH. Used when no routing config exists at all.
func fallbackPassthrough(ctx context.Context) error {
	bin := dprint.New("dprint", dprint.WithEnv(activeEnv+"=1"))

	code, err := bin.Passthrough(ctx, os.Args[1:])
	if err != nil {
		return fmt.Errorf("no dprintx config, falling back to dprint in PATH: %w", err)
	}

	return NewExitError(code)
}

// runPassthrough relays args to the configured dprint binary. Help requests
// are captured so the dprintx section can be appended.
func runPassthrough(ctx context.Context, ra *RootArgs, args []string) error {
	cfg, err := loadRouting(ra)
	if err != nil {
		return err
	}

	if cfg == nil {
		return fallbackPassthrough(ctx)
	}

	bin := dprint.New(cfg.DprintPath(), dprint.WithEnv(activeEnv+"=1"))

	if wantsHelp(args) {
		return passthroughHelp(ctx, bin, args)
	}

	code, err := bin.Passthrough(ctx, args)
	if err != nil {
		return err
	}

	return NewExitError(code)
}

func wantsHelp(args []string) bool {
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return true
		}
	}

	return false
}

func passthroughHelp(ctx context.Context, bin *dprint.Binary, args []string) error {
	res, err := bin.Capture(ctx, args)
	if err != nil {
		return err
	}

	mustN(os.Stdout.Write(res.Stdout))
	mustN(os.Stderr.Write(res.Stderr))
	mustN(fmt.Print(helpSection))

	return NewExitError(res.ExitCode)
}

// subPassthroughHelp makes a subcommand's help delegate to the wrapped
// dprint binary instead of cobra's renderer.
func subPassthroughHelp(ra *RootArgs, sub string) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, _ []string) {
		err := runPassthrough(cmd.Context(), ra, []string{sub, "--help"})
		if err != nil && !errors.As(err, new(*ExitError)) {
			cmd.PrintErrln(err)
		}
	}
}
