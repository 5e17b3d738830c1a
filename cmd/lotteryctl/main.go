package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mubson1/Deploy-Lottery/cmd/lotteryctl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
