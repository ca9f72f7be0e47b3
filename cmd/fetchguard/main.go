package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jgivc/fetchguard/internal/common"
)

const (
	exitFailure       = 1
	exitConfiguration = 2
	exitTimeout       = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, common.ErrTimeout):
		return exitTimeout
	case errors.Is(err, common.ErrConfiguration):
		return exitConfiguration
	default:
		return exitFailure
	}
}
