package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/vnstone/datastore/internal/cli"
	"github.com/vnstone/datastore/pkg/commands"
	"github.com/vnstone/datastore/pkg/printer"
	"github.com/vnstone/datastore/pkg/valuestore"
)

func replCmd() *cli.Command {
	return &cli.Command{
		Flags: flag.NewFlagSet("repl", flag.ContinueOnError),
		Usage: "repl",
		Short: "Interactively evaluate commands against an in-memory value store",
		Long:  "Read one $object/$append/$erase/$set command per line and print the store after each one. $include resolves relative to the current directory.",
		Exec: func(_ context.Context, o *cli.IO, _ []string) error {
			return runRepl(o)
		},
	}
}

// runRepl reads one command per line and re-evaluates the whole command
// list accumulated so far against a fresh store on every line (spec §4.6:
// a command file evaluates from scratch into a single document, so there
// is no meaningful way to apply one more command to an already-built
// result). This lets a user compose a command file interactively, line by
// line, while seeing the resulting document after each addition.
func runRepl(o *cli.IO) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	var cmds []string

	for {
		text, err := line.Prompt("dstore> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}

			return err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		line.AppendHistory(text)
		cmds = append(cmds, text)

		store := valuestore.New(valuestore.NewSymbols())
		eval := commands.New(store, commands.ResolverFunc(func(relativePath string) ([]byte, error) {
			return os.ReadFile(relativePath)
		}))

		root, err := eval.Eval([]byte("[" + strings.Join(cmds, ",") + "]"))
		if err != nil {
			o.ErrPrintln("error:", err)
			cmds = cmds[:len(cmds)-1]

			continue
		}

		out, err := printer.Print(store, root, nil, printer.Options{})
		if err != nil {
			o.ErrPrintln("error:", err)
			cmds = cmds[:len(cmds)-1]

			continue
		}

		o.Printf("%s", out)
	}
}
