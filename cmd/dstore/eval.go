package main

import (
	"context"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/vnstone/datastore/internal/cli"
	"github.com/vnstone/datastore/pkg/commands"
	"github.com/vnstone/datastore/pkg/printer"
	"github.com/vnstone/datastore/pkg/valuestore"
)

func evalCmd() *cli.Command {
	return &cli.Command{
		Flags: flag.NewFlagSet("eval", flag.ContinueOnError),
		Usage: "eval <commands-file>",
		Short: "Evaluate a $include/$object/$append/$erase/$set command file",
		Long:  "Evaluate a command file and print the resulting value store, resolving $include targets relative to the command file's own directory.",
		Exec: func(_ context.Context, o *cli.IO, args []string) error {
			if len(args) != 1 {
				return errUsage("eval <commands-file>")
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			store := valuestore.New(valuestore.NewSymbols())
			baseDir := filepath.Dir(args[0])

			eval := commands.New(store, commands.ResolverFunc(func(relativePath string) ([]byte, error) {
				return os.ReadFile(filepath.Join(baseDir, relativePath))
			}))

			root, err := eval.Eval(src)
			if err != nil {
				return err
			}

			out, err := printer.Print(store, root, nil, printer.Options{})
			if err != nil {
				return err
			}

			o.Printf("%s", out)

			return nil
		},
	}
}
