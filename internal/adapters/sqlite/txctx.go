package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"gorm.io/gorm"
)

type txCtxKey struct{}

func withTx(ctx context.Context, tx *gormsqlite.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

func txFrom(ctx context.Context) (*gormsqlite.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(*gormsqlite.Tx)
	return tx, ok && tx != nil
}

// readTX runs fn inside the unit-of-work transaction carried by ctx so reads
// observe its uncommitted writes, or in a fresh read transaction otherwise.
func readTX(ctx context.Context, db *gormsqlite.DB, fn func(tx *gormsqlite.Tx) error) error {
	if tx, ok := txFrom(ctx); ok {
		return fn(&gormsqlite.Tx{DB: tx.WithContext(ctx)})
	}
	return db.ReadTX(ctx, fn)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

// writeError marks constraint violations and lock contention as conflicts.
func writeError(err error, what string) error {
	msg := err.Error()
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "PRIMARY KEY constraint failed"),
		strings.Contains(msg, "SQLITE_BUSY"),
		strings.Contains(msg, "database is locked"):
		return fmt.Errorf("%s: %w: %w", what, domain.ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
