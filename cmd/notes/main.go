// Package main provides a headless command-line client for the tenant notes API.
//
// The bearer token is persisted between runs, so a login is remembered until
// logout or until the server rejects it.
//
// Usage:
//
//	API_BASE_URL=http://localhost:5000/api go run ./cmd/notes login admin@acme.test password
//	go run ./cmd/notes -api-url http://localhost:5000/api list -q roadmap -page 2
//	go run ./cmd/notes -api-url http://localhost:5000/api upgrade
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/tenantnotes/notes-client/internal/config"
	"github.com/tenantnotes/notes-client/internal/di"
	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
	"github.com/tenantnotes/notes-client/internal/logger"
)

func main() {
	cfg, args, err := config.LoadConfig()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(os.Stderr)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}
	if len(args) == 0 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	injector := di.NewContainer(cfg)
	handle, err := di.Bootstrap(injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start client: %v\n", err)
		os.Exit(1)
	}
	log := do.MustInvoke[*logger.Logger](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = newCLI(handle.App, os.Stdout).run(ctx, args)
	stop()

	if shutdownErr := injector.Shutdown(); shutdownErr != nil {
		log.WithError(shutdownErr).Error("Shutdown error")
	}

	if err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		log.Debug("command failed",
			"command", args[0],
			"code", string(clienterrors.CodeOf(err)),
			"error", err)
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}
