package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wonny/optenrich/cmd/optenrich/commands"
)

// main is the entry point for the optenrich CLI
// ⭐ go run ./cmd/optenrich [command]
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.Execute(ctx)
	stop()
	os.Exit(commands.ExitCode(err))
}
