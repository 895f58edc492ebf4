package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/mocksoul/dprintx/internal/cli"
)

func main() {
	err := fang.Execute(
		context.Background(),
		cli.NewRootCmd(),
		fang.WithErrorHandler(cli.ErrorHandler),
		fang.WithoutVersion(),
		fang.WithNotifySignal(os.Interrupt),
	)

	os.Exit(cli.ExitCode(err))
}
