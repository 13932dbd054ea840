package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/vnstone/datastore/internal/cli"
	"github.com/vnstone/datastore/pkg/cook"
)

func checkCmd() *cli.Command {
	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	source := flags.String("source", "", "source path for a one-to-one cooked artifact")

	return &cli.Command{
		Flags: flags,
		Usage: "check <basedir> <cooked-path> [flags]",
		Short: "Report whether a cooked artifact is up to date",
		Exec: func(ctx context.Context, o *cli.IO, args []string) error {
			if len(args) != 2 {
				return errUsage("check <basedir> <cooked-path>")
			}

			baseDir, cookedPath := args[0], args[1]

			db, err := cook.Open(ctx, cook.Options{
				BaseDir:       baseDir,
				ResolveSource: resolveSourceFlag(cookedPath, *source),
			})
			if err != nil {
				return err
			}
			defer db.Close()

			ok, err := db.CheckUpToDate(ctx, cookedPath)
			if err != nil {
				return err
			}

			if ok {
				o.Println("up-to-date")
				return nil
			}

			o.Println("stale")
			o.Warn(fmt.Sprintf("%s is stale", cookedPath))

			return nil
		},
	}
}

// resolveSourceFlag builds a single-artifact ResolveSource that answers
// only for cookedPath, matching the one artifact this invocation of
// cook is checking.
func resolveSourceFlag(cookedPath, source string) func(string) (string, bool) {
	if source == "" {
		return nil
	}

	return func(p string) (string, bool) {
		if p != cookedPath {
			return "", false
		}

		return source, true
	}
}
