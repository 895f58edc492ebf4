package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	shellwords "github.com/mattn/go-shellwords"
)

// checkDiffFiles checks explicit files and renders differences as one
// unified diff instead of the formatter's check output.
func (r *Runner) checkDiffFiles(ctx context.Context, files []string) (int, error) {
	var sb strings.Builder

	for _, file := range files {
		abs := absPath(file)

		res, err := r.matcher.Resolve(abs)
		if err != nil {
			return -1, fmt.Errorf("resolving config for %s: %w", file, err)
		}

		if res == nil || res.Ignore {
			continue
		}

		effective, guard, err := r.effectiveConfig(abs, res.ConfigPath)
		if err != nil {
			return -1, err
		}
		if guard != nil {
			defer guard.Release()
		}

		diff, err := r.diffForFile(ctx, file, effective)
		if err != nil {
			return -1, err
		}

		sb.WriteString(diff)
	}

	return r.outputDiff(ctx, sb.String())
}

// checkDiffAll diffs every changed file each profile reports.
func (r *Runner) checkDiffAll(ctx context.Context) (int, error) {
	var sb strings.Builder

	for _, profileConfig := range r.profileConfigs() {
		changed, err := r.bin.ListDifferent(ctx, profileConfig)
		if err != nil {
			return -1, fmt.Errorf("listing changed files for %s: %w", profileConfig, err)
		}

		for _, file := range changed {
			if !r.belongsTo(file, profileConfig) {
				continue
			}

			effective, guard, err := r.effectiveConfig(file, profileConfig)
			if err != nil {
				return -1, err
			}
			if guard != nil {
				defer guard.Release()
			}

			diff, err := r.diffForFile(ctx, file, effective)
			if err != nil {
				return -1, err
			}

			sb.WriteString(diff)
		}
	}

	return r.outputDiff(ctx, sb.String())
}

// diffForFile formats the file via stdin and diffs the result against the
// on-disk content. An already formatted file yields "".
func (r *Runner) diffForFile(ctx context.Context, file, configPath string) (string, error) {
	original, err := os.ReadFile(file) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}

	res, err := r.bin.FmtStdin(ctx, configPath, file, original)
	if err != nil {
		return "", err
	}

	formatted := string(res.Stdout)
	if string(original) == formatted {
		return "", nil
	}

	return udiff.Unified(file, file, string(original), formatted), nil
}

// outputDiff writes the collected diff, paging it on a terminal. Any diff
// at all means exit code 1.
func (r *Runner) outputDiff(ctx context.Context, diff string) (int, error) {
	if diff == "" {
		return 0, nil
	}

	if r.isTTY() && r.cfg.DiffPager != "" {
		err := r.pageDiff(ctx, diff)
		if err != nil {
			return -1, err
		}

		return 1, nil
	}

	_, err := fmt.Fprint(r.stdout, diff)
	if err != nil {
		return -1, fmt.Errorf("write diff: %w", err)
	}

	return 1, nil
}

func (r *Runner) pageDiff(ctx context.Context, diff string) error {
	parts, err := shellwords.Parse(r.cfg.DiffPager)
	if err != nil {
		return fmt.Errorf("parse diff_pager %q: %w", r.cfg.DiffPager, err)
	}

	if len(parts) == 0 {
		return fmt.Errorf("parse diff_pager %q: empty command", r.cfg.DiffPager)
	}

	//nolint:gosec // G204: Subprocess launched with a potential tainted input or cmd arguments.
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(diff)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Run()
	if err != nil {
		return fmt.Errorf("run pager %q: %w", r.cfg.DiffPager, err)
	}

	return nil
}
