package main

import (
	"context"
	"encoding/hex"

	flag "github.com/spf13/pflag"

	"github.com/vnstone/datastore/internal/cli"
	"github.com/vnstone/datastore/pkg/valuestore/canon"
)

func hashCmd() *cli.Command {
	return &cli.Command{
		Flags: flag.NewFlagSet("hash", flag.ContinueOnError),
		Usage: "hash <file>",
		Short: "Print the canonical MD5 hash of a value store",
		Exec: func(_ context.Context, o *cli.IO, args []string) error {
			if len(args) != 1 {
				return errUsage("hash <file>")
			}

			store, root, _, err := loadStore(args[0])
			if err != nil {
				return err
			}

			sum, err := canon.Hash(store, root)
			if err != nil {
				return err
			}

			o.Println(hex.EncodeToString(sum[:]))

			return nil
		},
	}
}
