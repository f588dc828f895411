package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// An interrupted extract cleans up its staging area like any failed run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "keyframes: interrupted")
		os.Exit(130)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "keyframes:", err)
		os.Exit(1)
	}
}
