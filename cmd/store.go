package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siteselect/internal/store"
)

// initStore opens and migrates the configured store. It fails when
// persistence is disabled.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("store is disabled (set store.driver to sqlite or postgres)")
	}
	return st, nil
}

// openStore opens and migrates the configured store, or returns nil when
// persistence is disabled.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
