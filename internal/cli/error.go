package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
)

// ExitError carries a formatter exit code through cobra so that main can
// propagate it without printing anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError wraps a non-zero exit code. Zero is not an error.
func NewExitError(code int) error {
	if code == 0 {
		return nil
	}

	return &ExitError{Code: code}
}

// ExitCode maps the error returned by command execution to a process exit
// code. Exit codes relayed from dprint win; any other error is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	exitErr := &ExitError{}
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return 1
}

func ErrorHandler(w io.Writer, styles fang.Styles, err error) {
	exitErr := &ExitError{}
	if errors.As(err, &exitErr) {
		// The wrapped formatter already reported; stay silent.
		return
	}

	mustN(fmt.Fprintln(w, styles.ErrorHeader.String()))
	mustN(fmt.Fprintln(w, lipgloss.NewStyle().MarginLeft(2).Render(err.Error())))
	mustN(fmt.Fprintln(w))
	if isUsageError(err) {
		mustN(fmt.Fprintln(w, lipgloss.JoinHorizontal(
			lipgloss.Left,
			styles.ErrorText.UnsetWidth().Render("Try"),
			styles.Program.Flag.Render("--help"),
			styles.ErrorText.UnsetWidth().UnsetMargins().UnsetTransform().PaddingLeft(1).Render("for usage."),
		)))
		mustN(fmt.Fprintln(w))
	}
}

// XXX: this is a hack to detect usage errors.
// See: https://github.com/spf13/cobra/pull/2266
func isUsageError(err error) bool {
	s := err.Error()
	for _, prefix := range []string{
		"flag needs an argument:",
		"unknown flag:",
		"unknown shorthand flag:",
		"unknown command",
		"invalid argument",
	} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func mustN(_ int, err error) {
	must(err)
}
