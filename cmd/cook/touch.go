package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/vnstone/datastore/internal/cli"
	"github.com/vnstone/datastore/pkg/cook"
)

func touchCmd() *cli.Command {
	return &cli.Command{
		Flags: flag.NewFlagSet("touch", flag.ContinueOnError),
		Usage: "touch <basedir> <path>",
		Short: "Notify the cook database that a source file changed",
		Exec: func(ctx context.Context, o *cli.IO, args []string) error {
			if len(args) != 2 {
				return errUsage("touch <basedir> <path>")
			}

			baseDir, path := args[0], args[1]

			db, err := cook.Open(ctx, cook.Options{BaseDir: baseDir})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.OnFileChanged(ctx, path); err != nil {
				return err
			}

			o.Println("invalidated", path)

			return nil
		},
	}
}

func touchDirCmd() *cli.Command {
	return &cli.Command{
		Flags: flag.NewFlagSet("touch-dir", flag.ContinueOnError),
		Usage: "touch-dir <basedir> <dir>",
		Short: "Notify the cook database that a source directory changed",
		Exec: func(ctx context.Context, o *cli.IO, args []string) error {
			if len(args) != 2 {
				return errUsage("touch-dir <basedir> <dir>")
			}

			baseDir, dir := args[0], args[1]

			db, err := cook.Open(ctx, cook.Options{BaseDir: baseDir})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.OnDirectoryChanged(ctx, dir); err != nil {
				return err
			}

			o.Println("invalidated", dir)

			return nil
		},
	}
}
