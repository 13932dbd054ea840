package main

import (
	"context"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/vnstone/datastore/internal/cli"
	"github.com/vnstone/datastore/pkg/cook"
)

func recordCmd() *cli.Command {
	return &cli.Command{
		Flags: flag.NewFlagSet("record", flag.ContinueOnError),
		Usage: "record <basedir> <cooked-path> <metadata.json>",
		Short: "Stamp a cooked artifact as freshly cooked",
		Long:  "Write the sidecar metadata file read from metadata.json and mark the artifact up to date. For one-to-one types metadata.json only needs CookedTimestamp.",
		Exec: func(ctx context.Context, o *cli.IO, args []string) error {
			if len(args) != 3 {
				return errUsage("record <basedir> <cooked-path> <metadata.json>")
			}

			baseDir, cookedPath, metaPath := args[0], args[1], args[2]

			data, err := os.ReadFile(metaPath)
			if err != nil {
				return err
			}

			meta, err := cook.DecodeMetadataJSON(data)
			if err != nil {
				return err
			}

			db, err := cook.Open(ctx, cook.Options{BaseDir: baseDir})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.RecordCooked(ctx, cookedPath, meta); err != nil {
				return err
			}

			o.Println("recorded", cookedPath)

			return nil
		},
	}
}
