// Command console is a terminal client for the admin console backend.
//
// Usage:
//
//	console [global options] <command> [options] [args]
//
// Exit codes:
//   - 0: success
//   - 1: error
//   - 2: validate rejected the value
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/internal/cli/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := cmd.NewApp()
	app.ExitErrHandler = exitErrHandler

	if err := app.RunContext(ctx, os.Args); err != nil {
		os.Exit(cmd.ExitError)
	}
}

// exitErrHandler prints err and exits, keeping the code of cli.Exit errors.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(cmd.ExitError)
}
