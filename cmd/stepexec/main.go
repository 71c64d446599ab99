package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nemanja-m/mrstep/internal/step/cli"

	_ "github.com/nemanja-m/mrstep/examples/echo"
	_ "github.com/nemanja-m/mrstep/examples/grep"
	_ "github.com/nemanja-m/mrstep/examples/wordcount"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
