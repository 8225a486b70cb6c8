package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"livemenu/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], cli.DefaultDependencies(version), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
