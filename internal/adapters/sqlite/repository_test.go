package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/migrations"
	_ "modernc.org/sqlite"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "migrate.sqlite")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	})

	if err := migrations.Up(ctx, db); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	assertTableCount(t, ctx, db, "roles", 2)
}

func TestUserRepositoryListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	store := NewUnitOfWorkStore(db)

	ada := testUser("u1", "Ada", "Lovelace", "ada@example.com")
	grace := testUser("u2", "Grace", "Hopper", "grace@example.com")
	grace.CreatedAt = testNow.Add(time.Minute)
	alan := testUser("u3", "Alan", "Turing", "alan@example.com")
	alan.CreatedAt = testNow.Add(2 * time.Minute)
	gone := testUser("u4", "Adam", "Gone", "adam@example.com")
	gone.MarkDeleted(testNow, domain.SystemActor)

	writeAll(t, store,
		added(ada), added(grace), added(alan), added(gone),
		added(&domain.UserRole{UserID: "u1", RoleID: adminRoleID, AssignedAt: testNow}),
		added(&domain.UserRole{UserID: "u1", RoleID: userRoleID, AssignedAt: testNow}),
		added(&domain.UserRole{UserID: "u2", RoleID: userRoleID, AssignedAt: testNow}),
	)
	repo := NewUserRepository(db)

	page, err := repo.List(ctx, domain.UserFilter{Search: "AD"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.TotalCount != 1 || len(page.Items) != 1 || page.Items[0].ID != "u1" {
		t.Fatalf("unexpected search result: %+v", page)
	}
	if got := page.Items[0].RoleNames(); len(got) != 2 || got[0] != domain.RoleAdmin || got[1] != domain.RoleUser {
		t.Fatalf("unexpected roles: %v", got)
	}

	page, err = repo.List(ctx, domain.UserFilter{Role: "user"})
	if err != nil {
		t.Fatalf("role filter: %v", err)
	}
	if page.TotalCount != 2 || page.Items[0].ID != "u2" || page.Items[1].ID != "u1" {
		t.Fatalf("unexpected role filter result: %+v", page)
	}

	page, err = repo.List(ctx, domain.UserFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("paging: %v", err)
	}
	if page.TotalCount != 3 || len(page.Items) != 1 || page.Items[0].ID != "u1" || page.TotalPages() != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}

	page, err = repo.List(ctx, domain.UserFilter{Search: "100%"})
	if err != nil {
		t.Fatalf("wildcard search: %v", err)
	}
	if page.TotalCount != 0 {
		t.Fatalf("expected literal %% match only, got %d", page.TotalCount)
	}
}

func TestUserRepositoryDeletedUsersAreHiddenButKeepTheirEmail(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	gone := testUser("u1", "Ada", "Lovelace", "ada@example.com")
	gone.MarkDeleted(testNow, domain.SystemActor)
	writeAll(t, NewUnitOfWorkStore(db), added(gone))
	repo := NewUserRepository(db)

	if _, err := repo.FindByID(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.FindByEmail(ctx, "ADA@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found by email, got %v", err)
	}
	if u, err := repo.FindByIDIncludingDeleted(ctx, "u1"); err != nil || !u.IsDeleted {
		t.Fatalf("expected deleted user, got %+v, %v", u, err)
	}
	taken, err := repo.EmailTaken(ctx, " Ada@Example.com ")
	if err != nil {
		t.Fatalf("email taken: %v", err)
	}
	if !taken {
		t.Fatalf("expected email of deleted user to stay taken")
	}
}

func TestRoleRepositoryCountsActiveMembers(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	gone := testUser("u2", "Grace", "Hopper", "grace@example.com")
	gone.MarkDeleted(testNow, domain.SystemActor)
	writeAll(t, NewUnitOfWorkStore(db),
		added(testUser("u1", "Ada", "Lovelace", "ada@example.com")), added(gone),
		added(&domain.UserRole{UserID: "u1", RoleID: userRoleID, AssignedAt: testNow}),
		added(&domain.UserRole{UserID: "u2", RoleID: userRoleID, AssignedAt: testNow}),
	)
	repo := NewRoleRepository(db)

	roles, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(roles) != 2 || roles[0].Name != domain.RoleAdmin || roles[1].Name != domain.RoleUser {
		t.Fatalf("unexpected roles: %+v", roles)
	}
	if roles[0].UserCount != 0 || roles[1].UserCount != 1 {
		t.Fatalf("unexpected counts: admin=%d user=%d", roles[0].UserCount, roles[1].UserCount)
	}

	role, err := repo.FindByName(ctx, "aDMIN")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if role.ID != adminRoleID {
		t.Fatalf("unexpected role id: %s", role.ID)
	}

	links, err := NewUserRoleRepository(db).ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(links) != 1 || links[0].RoleID != userRoleID {
		t.Fatalf("unexpected links: %+v", links)
	}
	if _, err := NewUserRoleRepository(db).Find(ctx, "u1", adminRoleID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRefreshTokenRepositoryListsOnlyActiveTokens(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)

	token := func(value string, expires time.Time) *domain.RefreshToken {
		return &domain.RefreshToken{
			Token:      value,
			UserID:     "u1",
			ExpiresAt:  expires,
			AuditStamp: domain.AuditStamp{CreatedAt: testNow, CreatedBy: "u1"},
		}
	}
	active := token("active", testNow.Add(time.Hour))
	expired := token("expired", testNow.Add(-time.Second))
	revoked := token("revoked", testNow.Add(time.Hour))
	revoked.Revoke(testNow, "127.0.0.1", domain.RevokeReasonLogout, "")

	writeAll(t, NewUnitOfWorkStore(db),
		added(testUser("u1", "Ada", "Lovelace", "ada@example.com")),
		added(active), added(expired), added(revoked),
	)
	repo := NewRefreshTokenRepository(db)

	tokens, err := repo.ListActiveByUser(ctx, "u1", testNow)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Token != "active" {
		t.Fatalf("unexpected active tokens: %+v", tokens)
	}

	stored, err := repo.FindByToken(ctx, "revoked")
	if err != nil {
		t.Fatalf("find revoked: %v", err)
	}
	if !stored.IsRevoked() || stored.ReasonRevoked != domain.RevokeReasonLogout {
		t.Fatalf("unexpected revoked token: %+v", stored)
	}
	if _, err := repo.FindByToken(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAuditTrailRepositoryFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	store := NewUnitOfWorkStore(db)

	first := auditFor("a1", "UserRole", "u1|"+adminRoleID)
	second := auditFor("a2", "User", "u1")
	second.CreatedAt = testNow.Add(time.Minute)
	second.CreatedBy = "u1"
	third := auditFor("a3", "User", "u2")
	third.CreatedAt = testNow.Add(2 * time.Minute)

	txCtx, tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.AppendAudit(txCtx, []domain.AuditEntry{first, second, third}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	repo := NewAuditTrailRepository(db)

	entries, err := repo.List(ctx, domain.AuditQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 || entries[0].ID != "a3" || entries[2].ID != "a1" {
		t.Fatalf("expected newest first, got %+v", entries)
	}

	entries, err = repo.List(ctx, domain.AuditQuery{EntityKey: "u1", Ascending: true})
	if err != nil {
		t.Fatalf("list by key: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "a1" || entries[1].ID != "a2" {
		t.Fatalf("expected composite and plain key matches, got %+v", entries)
	}

	from := testNow.Add(30 * time.Second)
	entries, err = repo.List(ctx, domain.AuditQuery{EntityType: "User", Actor: "u1", From: &from})
	if err != nil {
		t.Fatalf("list by actor: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "a2" {
		t.Fatalf("unexpected actor entries: %+v", entries)
	}

	entries, err = repo.List(ctx, domain.AuditQuery{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "a2" {
		t.Fatalf("unexpected paged entries: %+v", entries)
	}
}

func TestOutboxRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	store := NewUnitOfWorkStore(db)

	txCtx, tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.AppendAudit(txCtx, []domain.AuditEntry{auditFor("a1", "Role", "r1"), auditFor("a2", "Role", "r2")}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	repo := NewOutboxRepository(db)

	now := time.Now().UTC()
	pending, err := repo.FetchPending(ctx, now, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending events, got %d", len(pending))
	}
	if err := repo.MarkDispatched(ctx, pending[0].ID, now); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}
	later := now.Add(time.Hour)
	if err := repo.MarkFailed(ctx, pending[1].ID, 1, later, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err = repo.FetchPending(ctx, now, 10)
	if err != nil {
		t.Fatalf("fetch again: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected retry to be deferred, got %d", len(pending))
	}
	if pending, err = repo.FetchPending(ctx, later, 10); err != nil || len(pending) != 1 {
		t.Fatalf("expected retry to be due at %v, got %d (%v)", later, len(pending), err)
	}

	var id int64
	if err := wdb.QueryRowContext(ctx, "SELECT id FROM outbox_events WHERE status = 'pending'").Scan(&id); err != nil {
		t.Fatalf("select pending id: %v", err)
	}
	if err := repo.MarkDead(ctx, id, 10, "gave up"); err != nil {
		t.Fatalf("mark dead: %v", err)
	}
	var status string
	if err := wdb.QueryRowContext(ctx, "SELECT status FROM outbox_events WHERE id = ?", id).Scan(&status); err != nil {
		t.Fatalf("select status: %v", err)
	}
	if status != "dead" {
		t.Fatalf("unexpected status: %s", status)
	}
}
