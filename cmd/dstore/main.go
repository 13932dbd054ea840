// Package main provides dstore, a command-line tool for inspecting,
// diffing, patching, and evaluating value-store documents.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/vnstone/datastore/internal/cli"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	commands := []*cli.Command{
		printCmd(),
		hashCmd(),
		diffCmd(),
		patchCmd(),
		evalCmd(),
		replCmd(),
	}

	os.Exit(cli.Dispatch("dstore", commands, os.Stdout, os.Stderr, os.Args[1:], sigCh))
}
