package main

import (
	"context"
	"fmt"

	"github.com/fwojciec/chatstream"
	chatjson "github.com/fwojciec/chatstream/json"
	"github.com/fwojciec/chatstream/sqlite"
)

// openStore opens the session store of the given kind at path. The
// returned close function is never nil.
func openStore(ctx context.Context, kind, path string) (chatstream.SessionStore, func() error, error) {
	switch kind {
	case "sqlite":
		s, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "json":
		s, err := chatjson.NewStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q: must be \"sqlite\" or \"json\"", kind)
	}
}
