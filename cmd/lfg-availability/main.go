package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Gamers pick IANA zones; the binary must not depend on the host database.
	_ "time/tzdata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(appOptions{Stdout: os.Stdout, Stderr: os.Stderr})
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
