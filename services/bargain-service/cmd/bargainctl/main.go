package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"farmart-bargain/services/bargain-service/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cli.Execute(ctx)
}
