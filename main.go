package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/camden-git/faceattend/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	cmd.Execute(ctx)
}
