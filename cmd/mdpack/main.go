// Where: cmd/mdpack/main.go
// What: CLI entrypoint.
// Why: Execute mdpack commands with configured dependencies.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/poruru/mdpack/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Run(os.Args[1:], buildDependencies(ctx))
	stop()
	os.Exit(code)
}
