package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/vnstone/datastore/internal/cli"
	"github.com/vnstone/datastore/pkg/printer"
	"github.com/vnstone/datastore/pkg/valuestore"
	"github.com/vnstone/datastore/pkg/valuestore/canon"
)

func diffCmd() *cli.Command {
	return &cli.Command{
		Flags: flag.NewFlagSet("diff", flag.ContinueOnError),
		Usage: "diff <old> <new>",
		Short: "Print the patch that turns <old> into <new>",
		Exec: func(_ context.Context, o *cli.IO, args []string) error {
			if len(args) != 2 {
				return errUsage("diff <old> <new>")
			}

			oldStore, oldRoot, _, err := loadStore(args[0])
			if err != nil {
				return err
			}

			newStore, newRoot, _, err := loadStore(args[1])
			if err != nil {
				return err
			}

			patchStore := valuestore.New(valuestore.NewSymbols())

			patch, err := canon.Diff(patchStore, oldStore, oldRoot, newStore, newRoot)
			if err != nil {
				return err
			}

			out, err := printer.Print(patchStore, patch, nil, printer.Options{})
			if err != nil {
				return err
			}

			o.Printf("%s", out)

			return nil
		},
	}
}

func patchCmd() *cli.Command {
	return &cli.Command{
		Flags: flag.NewFlagSet("patch", flag.ContinueOnError),
		Usage: "patch <base> <diff>",
		Short: "Apply a diff produced by \"dstore diff\" to a base store",
		Exec: func(_ context.Context, o *cli.IO, args []string) error {
			if len(args) != 2 {
				return errUsage("patch <base> <diff>")
			}

			baseStore, baseRoot, _, err := loadStore(args[0])
			if err != nil {
				return err
			}

			patchStore, patchRoot, err := loadPatchStore(args[1])
			if err != nil {
				return err
			}

			dstStore := valuestore.New(valuestore.NewSymbols())

			result, err := canon.ApplyDiff(dstStore, baseStore, baseRoot, patchStore, patchRoot)
			if err != nil {
				return err
			}

			out, err := printer.Print(dstStore, result, nil, printer.Options{})
			if err != nil {
				return err
			}

			o.Printf("%s", out)

			return nil
		},
	}
}
