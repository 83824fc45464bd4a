package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Контекст отменяется по SIGINT/SIGTERM, serve завершается мягко
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
