package store

import (
	"context"
	"fmt"
)

// Open returns the Store for driver ("postgres" or "memory") and a close func.
// The Postgres schema is migrated before the pool is opened.
func Open(ctx context.Context, driver, dsn string) (Store, func(), error) {
	switch driver {
	case "memory":
		return NewMemory(), func() {}, nil
	case "postgres":
		if err := Migrate(dsn); err != nil {
			return nil, nil, err
		}
		pg, err := NewPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
