package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/vnstone/datastore/internal/cli"
	"github.com/vnstone/datastore/pkg/printer"
)

func printCmd() *cli.Command {
	flags := flag.NewFlagSet("print", flag.ContinueOnError)
	indent := flags.String("indent", "", "per-level indentation (defaults to two spaces)")

	return &cli.Command{
		Flags: flags,
		Usage: "print <file> [flags]",
		Short: "Print a value store as canonical JSON-with-extensions",
		Long:  "Load a binary or JSON-with-extensions value store and reprint it through the canonical pretty-printer.",
		Exec: func(_ context.Context, o *cli.IO, args []string) error {
			if len(args) != 1 {
				return errUsage("print <file>")
			}

			store, root, hint, err := loadStore(args[0])
			if err != nil {
				return err
			}

			out, err := printer.Print(store, root, hint, printer.Options{Indent: *indent})
			if err != nil {
				return err
			}

			o.Printf("%s", out)

			return nil
		},
	}
}
