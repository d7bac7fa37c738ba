// Package main is the entry point for the aliascache command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/aliascache/cmd/aliascache/commands"
	"github.com/unkn0wn-root/aliascache/internal/app"
	"github.com/unkn0wn-root/aliascache/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := commands.New(open, os.Stdout)
	cli.SetArgs(args)
	if err := cli.Execute(ctx); err != nil {
		// zerr prints metadata with %+v
		_, _ = fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		return 1
	}
	return 0
}

func open(path string) (*app.App, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	return app.Build(cfg, app.Components{})
}
