// Package dprint models the wrapped formatter binary as an external
// capability. Callers hand it an effective config path and files or bytes;
// nothing here knows how routing picked that config.
package dprint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mocksoul/dprintx/pkg/log"
)

// ErrCommandExecution is returned when the formatter cannot be run at all.
// A formatter that ran and exited non-zero is not this error; callers get
// the exit code instead.
var ErrCommandExecution = errors.New("run dprint")

// Result holds captured formatter output.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Binary wraps one dprint executable path.
type Binary struct {
	tracer trace.Tracer
	path   string
	env    []string
}

// New creates a [Binary] for the executable at path.
func New(path string, opts ...Opt) *Binary {
	b := &Binary{
		tracer: otel.Tracer("dprint"),
		path:   path,
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Opt is an option for [New].
type Opt func(*Binary)

// WithEnv appends extra environment variables ("KEY=value") to every
// spawned formatter process.
func WithEnv(env ...string) Opt {
	return func(b *Binary) {
		b.env = env
	}
}

func (b *Binary) environ() []string {
	if len(b.env) == 0 {
		return nil
	}

	return append(os.Environ(), b.env...)
}

// Path returns the executable path.
func (b *Binary) Path() string {
	return b.path
}

// Fmt formats files in place with the given config, inheriting stdio. The
// formatter's exit code is returned.
func (b *Binary) Fmt(ctx context.Context, configPath string, files []string) (int, error) {
	return b.runInherited(ctx, append([]string{"fmt", "--config", configPath}, files...))
}

// Check verifies files against the given config, inheriting stdio.
func (b *Binary) Check(ctx context.Context, configPath string, files []string) (int, error) {
	return b.runInherited(ctx, append([]string{"check", "--config", configPath}, files...))
}

// FmtStdin formats input as if it were the named file, using the given
// config. The formatted bytes are in the result's stdout.
func (b *Binary) FmtStdin(ctx context.Context, configPath, filename string, input []byte) (*Result, error) {
	return b.runCaptured(ctx, []string{"fmt", "--stdin", filename, "--config", configPath}, input)
}

// OutputFilePaths asks the formatter which files the given config covers.
func (b *Binary) OutputFilePaths(ctx context.Context, configPath string) ([]string, error) {
	res, err := b.runCaptured(ctx, []string{"output-file-paths", "--config", configPath}, nil)
	if err != nil {
		return nil, err
	}

	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: output-file-paths --config %s: exit status %d",
			ErrCommandExecution, configPath, res.ExitCode)
	}

	return splitLines(res.Stdout), nil
}

// ListDifferent returns the files the given config would reformat. A
// non-zero exit is expected whenever differences exist, so only spawn
// failures are errors.
func (b *Binary) ListDifferent(ctx context.Context, configPath string) ([]string, error) {
	res, err := b.runCaptured(ctx, []string{"check", "--list-different", "--config", configPath}, nil)
	if err != nil {
		return nil, err
	}

	return splitLines(res.Stdout), nil
}

// Passthrough runs the formatter with raw args and inherited stdio,
// including stdin. Used for subcommands this tool does not intercept.
func (b *Binary) Passthrough(ctx context.Context, args []string) (int, error) {
	//nolint:gosec // G204: Subprocess launched with a potential tainted input or cmd arguments.
	cmd := exec.CommandContext(ctx, b.path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = b.environ()

	return b.exitCode(cmd.Run(), args)
}

// Capture runs the formatter with raw args and captures its output. Used
// for help passthrough, where extra sections get appended afterwards.
func (b *Binary) Capture(ctx context.Context, args []string) (*Result, error) {
	return b.runCaptured(ctx, args, nil)
}

func (b *Binary) runInherited(ctx context.Context, args []string) (int, error) {
	ctx, span := b.tracer.Start(ctx, "exec", trace.WithAttributes(
		attribute.String("command", b.path),
		attribute.String("args", strings.Join(args, " ")),
	))
	defer span.End()

	log.WithContext(ctx).DebugContext(ctx, "exec dprint",
		slog.String("bin", b.path),
		slog.String("args", strings.Join(args, " ")),
	)

	//nolint:gosec // G204: Subprocess launched with a potential tainted input or cmd arguments.
	cmd := exec.CommandContext(ctx, b.path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = b.environ()

	return b.exitCode(cmd.Run(), args)
}

func (b *Binary) runCaptured(ctx context.Context, args []string, stdin []byte) (*Result, error) {
	ctx, span := b.tracer.Start(ctx, "exec", trace.WithAttributes(
		attribute.String("command", b.path),
		attribute.String("args", strings.Join(args, " ")),
	))
	defer span.End()

	log.WithContext(ctx).DebugContext(ctx, "exec dprint",
		slog.String("bin", b.path),
		slog.String("args", strings.Join(args, " ")),
	)

	//nolint:gosec // G204: Subprocess launched with a potential tainted input or cmd arguments.
	cmd := exec.CommandContext(ctx, b.path, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = b.environ()

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	code, err := b.exitCode(cmd.Run(), args)
	if err != nil {
		return nil, err
	}

	return &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: code,
	}, nil
}

// exitCode separates "ran and exited non-zero" from "could not run".
func (b *Binary) exitCode(err error, args []string) (int, error) {
	if err == nil {
		return 0, nil
	}

	exitErr := &exec.ExitError{}
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("%w: %s %s: %w", ErrCommandExecution, b.path, strings.Join(args, " "), err)
}

func splitLines(data []byte) []string {
	var lines []string

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}
