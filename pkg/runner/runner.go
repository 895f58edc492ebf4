package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/term"

	"github.com/mocksoul/dprintx/pkg/dprint"
	"github.com/mocksoul/dprintx/pkg/matcher"
	"github.com/mocksoul/dprintx/pkg/mergeconf"
	"github.com/mocksoul/dprintx/pkg/routing"
)

// Runner executes one-shot operations against the wrapped formatter.
type Runner struct {
	cfg     *routing.Config
	matcher *matcher.Matcher
	bin     *dprint.Binary
	stdout  io.Writer
	isTTY   func() bool
}

// New creates a [Runner] for the given routing config.
func New(cfg *routing.Config, m *matcher.Matcher, opts ...Opt) *Runner {
	r := &Runner{
		cfg:     cfg,
		matcher: m,
		bin:     dprint.New(cfg.DprintPath()),
		stdout:  os.Stdout,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

type Opt func(*Runner)

// WithBinary overrides the formatter binary.
func WithBinary(b *dprint.Binary) Opt {
	return func(r *Runner) {
		r.bin = b
	}
}

// WithStdout overrides where file lists and diffs are written.
func WithStdout(w io.Writer) Opt {
	return func(r *Runner) {
		r.stdout = w
	}
}

// WithTTY overrides terminal detection.
func WithTTY(isTTY func() bool) Opt {
	return func(r *Runner) {
		r.isTTY = isTTY
	}
}

// FmtStdin formats in as if it were the named file and writes the result to
// out. Files no rule routes, and files routed to an ignore profile, pass
// through unchanged. The formatter's exit code is returned.
func (r *Runner) FmtStdin(ctx context.Context, filename string, in io.Reader, out io.Writer) (int, error) {
	input, err := io.ReadAll(in)
	if err != nil {
		return -1, fmt.Errorf("read stdin: %w", err)
	}

	res, err := r.matcher.Resolve(absPath(filename))
	if err != nil {
		return -1, fmt.Errorf("resolving config for %s: %w", filename, err)
	}

	if res == nil || res.Ignore {
		_, err = out.Write(input)
		if err != nil {
			return -1, fmt.Errorf("write stdout: %w", err)
		}

		return 0, nil
	}

	effective, guard, err := r.effectiveConfig(absPath(filename), res.ConfigPath)
	if err != nil {
		return -1, err
	}
	if guard != nil {
		defer guard.Release()
	}

	fmtRes, err := r.bin.FmtStdin(ctx, effective, filename, input)
	if err != nil {
		return -1, err
	}

	if len(fmtRes.Stderr) > 0 {
		_, _ = os.Stderr.Write(fmtRes.Stderr)
	}

	_, err = out.Write(fmtRes.Stdout)
	if err != nil {
		return -1, fmt.Errorf("write stdout: %w", err)
	}

	return fmtRes.ExitCode, nil
}

// FmtFiles formats explicit files, one formatter run per effective config.
func (r *Runner) FmtFiles(ctx context.Context, files []string) (int, error) {
	return r.runFiles(ctx, "fmt", files)
}

// CheckFiles checks explicit files. With diff_pager configured, a unified
// diff is produced instead of the formatter's own check output.
func (r *Runner) CheckFiles(ctx context.Context, files []string) (int, error) {
	if r.cfg.DiffPager != "" {
		return r.checkDiffFiles(ctx, files)
	}

	return r.runFiles(ctx, "check", files)
}

// FmtAll formats every file any profile covers.
func (r *Runner) FmtAll(ctx context.Context) (int, error) {
	return r.runAll(ctx, "fmt")
}

// CheckAll checks every file any profile covers.
func (r *Runner) CheckAll(ctx context.Context) (int, error) {
	if r.cfg.DiffPager != "" {
		return r.checkDiffAll(ctx)
	}

	return r.runAll(ctx, "check")
}

// OutputFilePaths prints the sorted union of every profile's covered files,
// keeping only files whose own resolution picks that profile.
func (r *Runner) OutputFilePaths(ctx context.Context) error {
	seen := map[string]struct{}{}

	var all []string

	for _, profileConfig := range r.profileConfigs() {
		files, err := r.bin.OutputFilePaths(ctx, profileConfig)
		if err != nil {
			return fmt.Errorf("getting file paths for config %s: %w", profileConfig, err)
		}

		for _, file := range files {
			if !r.belongsTo(file, profileConfig) {
				continue
			}

			if _, ok := seen[file]; !ok {
				seen[file] = struct{}{}
				all = append(all, file)
			}
		}
	}

	slices.Sort(all)

	for _, file := range all {
		_, err := fmt.Fprintln(r.stdout, file)
		if err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}
	}

	return nil
}

// runFiles groups explicit files by effective config and runs one formatter
// invocation per group. Guards are held until every invocation finishes.
func (r *Runner) runFiles(ctx context.Context, verb string, files []string) (int, error) {
	groups, release, err := r.groupFiles(files)
	if err != nil {
		return -1, err
	}
	defer release()

	return r.runGroups(ctx, verb, groups)
}

// runAll asks each profile which files it covers, keeps the ones whose
// resolution picks that profile, then runs per effective config group.
func (r *Runner) runAll(ctx context.Context, verb string) (int, error) {
	groups, release, err := r.groupAll(ctx)
	if err != nil {
		return -1, err
	}
	defer release()

	return r.runGroups(ctx, verb, groups)
}

func (r *Runner) runGroups(ctx context.Context, verb string, groups *configGroups) (int, error) {
	failed := false

	for _, g := range groups.ordered() {
		var (
			code int
			err  error
		)

		switch verb {
		case "fmt":
			code, err = r.bin.Fmt(ctx, g.config, g.files)
		default:
			code, err = r.bin.Check(ctx, g.config, g.files)
		}

		if err != nil {
			return -1, err
		}

		if code != 0 {
			failed = true
		}
	}

	if failed {
		return 1, nil
	}

	return 0, nil
}

// configGroups maps effective config paths to file groups, preserving the
// order in which configs first appeared.
type configGroups struct {
	files map[string][]string
	order []string
}

type group struct {
	config string
	files  []string
}

func newConfigGroups() *configGroups {
	return &configGroups{files: map[string][]string{}}
}

func (g *configGroups) add(config, file string) {
	if _, ok := g.files[config]; !ok {
		g.order = append(g.order, config)
	}

	g.files[config] = append(g.files[config], file)
}

func (g *configGroups) ordered() []group {
	out := make([]group, 0, len(g.order))
	for _, config := range g.order {
		out = append(out, group{config: config, files: g.files[config]})
	}

	return out
}

func (r *Runner) groupFiles(files []string) (*configGroups, func(), error) {
	groups := newConfigGroups()

	var guards []*mergeconf.TempConfig

	release := func() {
		for _, g := range guards {
			g.Release()
		}
	}

	for _, file := range files {
		abs := absPath(file)

		res, err := r.matcher.Resolve(abs)
		if err != nil {
			release()

			return nil, nil, fmt.Errorf("resolving config for %s: %w", file, err)
		}

		if res == nil || res.Ignore {
			continue
		}

		effective, guard, err := r.effectiveConfig(abs, res.ConfigPath)
		if err != nil {
			release()

			return nil, nil, err
		}
		if guard != nil {
			guards = append(guards, guard)
		}

		groups.add(effective, file)
	}

	return groups, release, nil
}

func (r *Runner) groupAll(ctx context.Context) (*configGroups, func(), error) {
	groups := newConfigGroups()

	var guards []*mergeconf.TempConfig

	release := func() {
		for _, g := range guards {
			g.Release()
		}
	}

	for _, profileConfig := range r.profileConfigs() {
		files, err := r.bin.OutputFilePaths(ctx, profileConfig)
		if err != nil {
			slog.Warn("output-file-paths failed",
				slog.String("config", profileConfig),
				slog.Any("error", err),
			)

			continue
		}

		for _, file := range files {
			if !r.belongsTo(file, profileConfig) {
				continue
			}

			effective, guard, err := r.effectiveConfig(file, profileConfig)
			if err != nil {
				release()

				return nil, nil, err
			}
			if guard != nil {
				guards = append(guards, guard)
			}

			groups.add(effective, file)
		}
	}

	return groups, release, nil
}

// profileConfigs returns the distinct profile config paths referenced by the
// match rules, in first-seen order. Ignore profiles have no config.
func (r *Runner) profileConfigs() []string {
	seen := map[string]struct{}{}

	var configs []string

	for _, profile := range r.cfg.Match.Profiles() {
		res, err := r.cfg.ResolveProfile(profile)
		if err != nil || res.Ignore {
			continue
		}

		if _, ok := seen[res.ConfigPath]; !ok {
			seen[res.ConfigPath] = struct{}{}
			configs = append(configs, res.ConfigPath)
		}
	}

	return configs
}

// belongsTo reports whether the file's own resolution picks profileConfig.
// Files another rule routes elsewhere are handled by that profile's pass.
func (r *Runner) belongsTo(file, profileConfig string) bool {
	res, err := r.matcher.Resolve(file)
	if err != nil || res == nil || res.Ignore {
		return false
	}

	return res.ConfigPath == profileConfig
}

// effectiveConfig merges a project-local config when one exists. The guard
// is nil when the profile config is used directly.
func (r *Runner) effectiveConfig(file, profileConfig string) (string, *mergeconf.TempConfig, error) {
	tc, err := mergeconf.Build(filepath.Dir(file), profileConfig)
	if err != nil {
		return "", nil, fmt.Errorf("merge project config for %s: %w", file, err)
	}

	if tc == nil {
		return profileConfig, nil, nil
	}

	return tc.Path(), tc, nil
}

func absPath(file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		return file
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}

	return abs
}
