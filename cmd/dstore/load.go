package main

import (
	"fmt"
	"os"

	"github.com/vnstone/datastore/pkg/binfmt"
	"github.com/vnstone/datastore/pkg/extjson"
	"github.com/vnstone/datastore/pkg/hints"
	"github.com/vnstone/datastore/pkg/valuestore"
)

// loadStore reads path as either a binary value-store file ([binfmt.Load])
// or a JSON-with-extensions document ([extjson.Parse]), dispatching on the
// leading signature bytes (spec §4.5's "route to C4 instead" rule). hint is
// nil when path was binary, since the binary format carries no comments or
// source order to preserve.
func loadStore(path string) (store *valuestore.Store, root valuestore.DataNode, hint *hints.Node, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, nil, err
	}

	if extjson.LooksBinary(data) {
		store, err = binfmt.Decode(data, binfmt.CurrentPlatform())
		if err != nil {
			return nil, 0, nil, fmt.Errorf("decoding %s: %w", path, err)
		}

		return store, store.Root(), nil, nil
	}

	store = valuestore.New(valuestore.NewSymbols())

	result, err := extjson.Parse(store, data, extjson.Options{})
	if err != nil {
		return nil, 0, nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return store, result.Root, result.Hints, nil
}

// loadPatchStore is [loadStore] with NullAsSpecialErase set for a JSON
// text patch file, so a literal `null` in a diff document round-trips as
// [valuestore.SpecialEraseNode] instead of an ordinary null value (spec
// §4.3). Binary-encoded patches already carry the distinction in their tag
// bits and need no special handling.
func loadPatchStore(path string) (store *valuestore.Store, root valuestore.DataNode, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	if extjson.LooksBinary(data) {
		store, err = binfmt.Decode(data, binfmt.CurrentPlatform())
		if err != nil {
			return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
		}

		return store, store.Root(), nil
	}

	store = valuestore.New(valuestore.NewSymbols())

	result, err := extjson.Parse(store, data, extjson.Options{NullAsSpecialErase: true})
	if err != nil {
		return nil, 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	return store, result.Root, nil
}
