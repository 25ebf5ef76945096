package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli := NewCLI(env.NewRepository(), log.NewLogger())
	err := NewRootCommand(cli).ExecuteContext(ctx)
	cli.Close()
	stop()

	if err != nil {
		os.Exit(1)
	}
}
