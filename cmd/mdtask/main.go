// Package main is the entry point for the mdtask CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mdtask/internal/cli"
	"mdtask/internal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, cli.NewClient)
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}
