package changeset

import (
	"context"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID       string
	Email    string
	Name     string
	Password string
	domain.AuditStamp
	domain.SoftDelete
}

func (account) EntityName() string { return "Account" }

type ticket struct {
	ID      int64
	Subject string
	domain.AuditStamp
}

func (ticket) EntityName() string { return "Ticket" }

type membership struct {
	AccountID string
	GroupID   string
	Note      string
}

func (membership) EntityName() string { return "Membership" }

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, Register(r, Type[account]{
		Name: "Account",
		Fields: []Field[account]{
			{Name: "ID", Key: true, Get: func(a *account) any { return a.ID }},
			{Name: "Email", Get: func(a *account) any { return a.Email }},
			{Name: "Name", Get: func(a *account) any { return a.Name }},
			{Name: "Password", Sensitive: true, Get: func(a *account) any { return a.Password }},
			{Name: "IsDeleted", Get: func(a *account) any { return a.IsDeleted }},
			{Name: "DeletedAt", Get: func(a *account) any { return a.DeletedAt }},
			{Name: "DeletedBy", Get: func(a *account) any { return a.DeletedBy }},
		},
		SoftDelete: func(a *account) *domain.SoftDelete { return &a.SoftDelete },
		Stamp:      func(a *account) *domain.AuditStamp { return &a.AuditStamp },
	}))
	require.NoError(t, Register(r, Type[ticket]{
		Name: "Ticket",
		Fields: []Field[ticket]{
			{Name: "ID", Key: true, StoreGenerated: true, Get: func(tk *ticket) any { return tk.ID }},
			{Name: "Subject", Get: func(tk *ticket) any { return tk.Subject }},
		},
		Stamp: func(tk *ticket) *domain.AuditStamp { return &tk.AuditStamp },
	}))
	require.NoError(t, Register(r, Type[membership]{
		Name: "Membership",
		Fields: []Field[membership]{
			{Name: "AccountID", Key: true, Get: func(m *membership) any { return m.AccountID }},
			{Name: "GroupID", Key: true, Get: func(m *membership) any { return m.GroupID }},
			{Name: "Note", Get: func(m *membership) any { return m.Note }},
		},
	}))
	return r
}

type memTxKey struct{}

type memStore struct {
	assignIDs   bool
	nextID      int64
	writeErr    error
	appendErr   error
	appendErrAt int
	commitErr   error

	begins      int
	commits     int
	rollbacks   int
	appendCalls int

	committedOps   []Operation
	committedAudit []domain.AuditEntry
}

type memTx struct {
	store *memStore
	ops   []Operation
	audit []domain.AuditEntry
	done  bool
}

func (s *memStore) Begin(ctx context.Context) (context.Context, StoreTx, error) {
	s.begins++
	tx := &memTx{store: s}
	return context.WithValue(ctx, memTxKey{}, tx), tx, nil
}

func (tx *memTx) Write(_ context.Context, ops []Operation) error {
	if tx.store.writeErr != nil {
		return tx.store.writeErr
	}
	for _, op := range ops {
		if tk, ok := op.Entity.(*ticket); ok && op.State == Added && tx.store.assignIDs && tk.ID == 0 {
			tx.store.nextID++
			tk.ID = tx.store.nextID
		}
	}
	tx.ops = append(tx.ops, ops...)
	return nil
}

func (tx *memTx) AppendAudit(_ context.Context, entries []domain.AuditEntry) error {
	tx.store.appendCalls++
	if tx.store.appendErrAt > 0 && tx.store.appendCalls == tx.store.appendErrAt {
		return tx.store.appendErr
	}
	tx.audit = append(tx.audit, entries...)
	return nil
}

func (tx *memTx) Commit() error {
	if tx.store.commitErr != nil {
		return tx.store.commitErr
	}
	tx.done = true
	tx.store.commits++
	tx.store.committedOps = append(tx.store.committedOps, tx.ops...)
	tx.store.committedAudit = append(tx.store.committedAudit, tx.audit...)
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.rollbacks++
	return nil
}

type countingObserver struct {
	commits int
	entries int
	errs    int
}

func (o *countingObserver) CommitFinished(entries int, err error) {
	o.commits++
	o.entries += entries
	if err != nil {
		o.errs++
	}
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func testContext() context.Context {
	ctx := domain.WithTime(context.Background(), fixedNow)
	return domain.WithActor(ctx, domain.Actor{ID: "admin-1", IP: "10.0.0.7", Agent: "curl/8.5"})
}

func newTestGateway(t *testing.T, store *memStore, opts ...Option) *Gateway {
	t.Helper()
	return NewFactory(testRegistry(t), store, opts...).New()
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	values, err := DecodeValues(raw)
	require.NoError(t, err)
	return values
}
