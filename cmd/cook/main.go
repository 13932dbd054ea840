// Package main provides cook, a command-line tool for querying and
// updating the cook database that tracks staleness of derived build
// artifacts.
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
		checkCmd(),
		recordCmd(),
		touchCmd(),
		touchDirCmd(),
	}

	os.Exit(cli.Dispatch("cook", commands, os.Stdout, os.Stderr, os.Args[1:], sigCh))
}
