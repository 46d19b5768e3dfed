package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/changeset"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/migrations"
)

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

const (
	adminRoleID = "6f0c3c1e-5b1a-4c2e-9a55-2f4b8d7e0a01"
	userRoleID  = "6f0c3c1e-5b1a-4c2e-9a55-2f4b8d7e0a02"
)

func openTestDB(t *testing.T) (*gormsqlite.DB, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := gormsqlite.Open(filepath.Join(t.TempDir(), "identity.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	wdb, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(ctx, wdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, wdb
}

func testUser(id, first, last, email string) *domain.User {
	return &domain.User{
		ID:           id,
		FirstName:    first,
		LastName:     last,
		Email:        email,
		PasswordHash: "hash",
		IsActive:     true,
		AuditStamp:   domain.AuditStamp{CreatedAt: testNow, CreatedBy: domain.SystemActor},
	}
}

// writeAll applies ops in one committed store transaction.
func writeAll(t *testing.T, store *UnitOfWorkStore, ops ...changeset.Operation) {
	t.Helper()
	ctx := context.Background()
	txCtx, tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Write(txCtx, ops); err != nil {
		_ = tx.Rollback()
		t.Fatalf("write: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func added(e changeset.Entity) changeset.Operation {
	return changeset.Operation{Entity: e, State: changeset.Added}
}

func assertTableCount(t *testing.T, ctx context.Context, wdb *sql.DB, table string, want int) {
	t.Helper()
	var got int
	row := wdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table)
	if err := row.Scan(&got); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	if got != want {
		t.Fatalf("unexpected %s count: got %d want %d", table, got, want)
	}
}
