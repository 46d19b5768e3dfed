package changeset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

var (
	ErrInvalidState       = errors.New("invalid staging state")
	ErrCommitInProgress   = errors.New("commit already in progress")
	ErrNoTransaction      = errors.New("no transaction in progress")
	ErrTransactionAborted = errors.New("transaction was rolled back")
)

type Phase string

const (
	PhaseBusinessWrite  Phase = "business-write"
	PhaseAuditSynthesis Phase = "audit-synthesis"
	PhaseAuditWrite     Phase = "audit-write"
)

// CommitError reports the phase in which a commit failed. Every phase is
// fatal for the unit of work; errors.Is(err, domain.ErrConflict) marks the
// cases worth retrying.
type CommitError struct {
	Phase Phase
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed during %s: %v", e.Phase, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Operation is a single row change handed to the store, in staging order.
type Operation struct {
	Entity Entity
	State  State
}

// Store opens transactions on the backing database.
type Store interface {
	// Begin returns a context carrying the transaction so that reads made
	// with it observe the transaction's writes.
	Begin(ctx context.Context) (context.Context, StoreTx, error)
}

type StoreTx interface {
	// Write applies ops and back-fills store-generated values into the
	// staged entities.
	Write(ctx context.Context, ops []Operation) error
	AppendAudit(ctx context.Context, entries []domain.AuditEntry) error
	Commit() error
	Rollback() error
}

// Observer is notified once per finished commit.
type Observer interface {
	CommitFinished(entries int, err error)
}

type GatewayState int

const (
	Idle GatewayState = iota
	Staged
	Committing
	Committed
	Failed
	RolledBack
)

func (s GatewayState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Staged:
		return "staged"
	case Committing:
		return "committing"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	case RolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

type scope struct {
	ctx     context.Context
	tx      StoreTx
	depth   int
	aborted bool
}

// Gateway is a request-scoped unit of work. It is not safe for concurrent use.
type Gateway struct {
	registry    *Registry
	store       Store
	observer    Observer
	interceptor SoftDeleteInterceptor
	tracker     *Tracker

	state    GatewayState
	batch    []*Entry
	index    map[Entity]*Entry
	attached map[Entity][]any
	scope    *scope
}

func (g *Gateway) State() GatewayState {
	return g.state
}

// Attach snapshots the current field values of a loaded entity so later
// modifications are diffed against them.
func (g *Gateway) Attach(e Entity) error {
	d, err := g.registry.lookup(e)
	if err != nil {
		return err
	}
	vals, err := d.values(e)
	if err != nil {
		return err
	}
	g.attached[e] = vals
	return nil
}

func (g *Gateway) Add(e Entity) error    { return g.Stage(e, Added) }
func (g *Gateway) Update(e Entity) error { return g.Stage(e, Modified) }
func (g *Gateway) Remove(e Entity) error { return g.Stage(e, Removed) }

// Stage records e in the pending batch. Staging the same instance again
// merges into its existing entry.
func (g *Gateway) Stage(e Entity, state State) error {
	if g.state == Committing {
		return ErrCommitInProgress
	}
	if state != Added && state != Modified && state != Removed {
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	d, err := g.registry.lookup(e)
	if err != nil {
		return err
	}

	if existing, ok := g.index[e]; ok {
		merged, keep := mergeStates(existing.State, state)
		if !keep {
			g.drop(e)
		} else {
			existing.State = merged
		}
		g.markStaged()
		return nil
	}

	entry := &Entry{Entity: e, State: state, desc: d}
	g.batch = append(g.batch, entry)
	g.index[e] = entry
	g.markStaged()
	return nil
}

func mergeStates(prev, next State) (State, bool) {
	switch {
	case prev == Added && next == Removed:
		return Unchanged, false
	case prev == Added:
		return Added, true
	case prev == Removed || next == Removed:
		return Removed, true
	default:
		return Modified, true
	}
}

func (g *Gateway) drop(e Entity) {
	delete(g.index, e)
	for i, entry := range g.batch {
		if entry.Entity == e {
			g.batch = append(g.batch[:i], g.batch[i+1:]...)
			return
		}
	}
}

func (g *Gateway) markStaged() {
	if len(g.batch) == 0 {
		if g.state == Staged {
			g.state = Idle
		}
		return
	}
	g.state = Staged
}

// Commit persists the staged batch together with its audit entries and
// returns the entries written. Cancellation is honoured only before any work
// starts; once the store is touched the commit runs to completion.
func (g *Gateway) Commit(ctx context.Context) ([]domain.AuditEntry, error) {
	if g.state == Committing {
		return nil, ErrCommitInProgress
	}
	if g.scope != nil && g.scope.aborted {
		return nil, ErrTransactionAborted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(g.batch) == 0 {
		g.state = Committed
		g.notify(0, nil)
		return nil, nil
	}

	g.state = Committing
	entries := g.batch
	g.batch = nil
	g.index = make(map[Entity]*Entry)

	written, err := g.commit(context.WithoutCancel(ctx), entries)
	g.notify(len(written), err)
	if err != nil {
		return nil, err
	}
	g.state = Committed
	return written, nil
}

func (g *Gateway) commit(ctx context.Context, entries []*Entry) ([]domain.AuditEntry, error) {
	actor := domain.ActorFrom(ctx)
	at := domain.Now(ctx)

	for _, entry := range entries {
		entry.original = g.attached[entry.Entity]
	}
	g.interceptor.Apply(entries, at, actor.Name())

	records, err := g.tracker.Track(entries, actor)
	if err != nil {
		return nil, g.fail(nil, false, PhaseAuditSynthesis, err)
	}
	records = withChanges(records)
	if len(records) == 0 {
		return nil, nil
	}
	stamp(records, at, actor.Name())

	txCtx, tx, owned, err := g.transaction(ctx)
	if err != nil {
		return nil, g.fail(nil, false, PhaseBusinessWrite, err)
	}

	synth := NewSynthesizer()
	first, err := synth.Prepare(records, at)
	if err != nil {
		return nil, g.fail(tx, owned, PhaseAuditSynthesis, err)
	}

	ops := make([]Operation, 0, len(records))
	for _, rec := range records {
		ops = append(ops, Operation{Entity: rec.Entity, State: rec.State})
	}
	if err := tx.Write(txCtx, ops); err != nil {
		return nil, g.fail(tx, owned, PhaseBusinessWrite, err)
	}
	if len(first) > 0 {
		if err := tx.AppendAudit(txCtx, first); err != nil {
			return nil, g.fail(tx, owned, PhaseAuditWrite, err)
		}
	}

	second, err := synth.Resolve(at)
	if err != nil {
		return nil, g.fail(tx, owned, PhaseAuditSynthesis, err)
	}
	if len(second) > 0 {
		if err := tx.AppendAudit(txCtx, second); err != nil {
			return nil, g.fail(tx, owned, PhaseAuditWrite, err)
		}
	}

	if owned {
		if err := tx.Commit(); err != nil {
			return nil, g.fail(nil, false, PhaseBusinessWrite, err)
		}
	}

	for _, rec := range records {
		g.refresh(rec.Entity)
	}
	return append(first, second...), nil
}

// transaction returns the explicit scope's transaction, or a new one owned by
// the current commit.
func (g *Gateway) transaction(ctx context.Context) (context.Context, StoreTx, bool, error) {
	if g.scope != nil {
		return g.scope.ctx, g.scope.tx, false, nil
	}
	txCtx, tx, err := g.store.Begin(ctx)
	if err != nil {
		return nil, nil, false, err
	}
	return txCtx, tx, true, nil
}

// fail rolls back everything the failed commit belongs to: its own
// transaction, or the whole explicit scope.
func (g *Gateway) fail(tx StoreTx, owned bool, phase Phase, err error) error {
	g.state = Failed
	switch {
	case owned && tx != nil:
		_ = tx.Rollback()
	case g.scope != nil && !g.scope.aborted:
		_ = g.scope.tx.Rollback()
		g.scope.aborted = true
	}
	g.state = RolledBack
	return &CommitError{Phase: phase, Err: err}
}

func (g *Gateway) refresh(e Entity) {
	d, err := g.registry.lookup(e)
	if err != nil {
		return
	}
	if vals, err := d.values(e); err == nil {
		g.attached[e] = vals
	}
}

func (g *Gateway) notify(entries int, err error) {
	if g.observer != nil {
		g.observer.CommitFinished(entries, err)
	}
}

// BeginTransaction opens an explicit scope spanning several commits. Nested
// calls join the outermost scope. The returned context carries the store
// transaction and must be used for reads inside the scope.
func (g *Gateway) BeginTransaction(ctx context.Context) (context.Context, error) {
	if g.scope != nil {
		if g.scope.aborted {
			return nil, ErrTransactionAborted
		}
		g.scope.depth++
		return g.scope.ctx, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txCtx, tx, err := g.store.Begin(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	g.scope = &scope{ctx: txCtx, tx: tx, depth: 1}
	return txCtx, nil
}

// CommitTransaction commits any staged changes and, at the outermost level,
// the scope itself.
func (g *Gateway) CommitTransaction(ctx context.Context) error {
	if g.scope == nil {
		return ErrNoTransaction
	}
	if g.scope.aborted {
		g.scope = nil
		return ErrTransactionAborted
	}
	if len(g.batch) > 0 {
		if _, err := g.Commit(ctx); err != nil {
			return err
		}
	}
	g.scope.depth--
	if g.scope.depth > 0 {
		return nil
	}

	tx := g.scope.tx
	g.scope = nil
	if err := tx.Commit(); err != nil {
		g.state = RolledBack
		return &CommitError{Phase: PhaseBusinessWrite, Err: err}
	}
	g.state = Committed
	return nil
}

// RollbackTransaction discards the scope and anything still staged. Nested
// scopes roll back as a whole.
func (g *Gateway) RollbackTransaction(context.Context) error {
	g.batch = nil
	g.index = make(map[Entity]*Entry)
	if g.scope == nil {
		return nil
	}
	s := g.scope
	g.scope = nil
	g.state = RolledBack
	if s.aborted {
		return nil
	}
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

func withChanges(records []ChangeRecord) []ChangeRecord {
	out := records[:0]
	for _, rec := range records {
		if rec.HasChanges() {
			out = append(out, rec)
		}
	}
	return out
}

func stamp(records []ChangeRecord, at time.Time, actor string) {
	for _, rec := range records {
		if rec.desc.stamp == nil {
			continue
		}
		st := rec.desc.stamp(rec.Entity)
		if st == nil {
			continue
		}
		switch rec.State {
		case Added:
			st.StampCreated(at, actor)
		case Modified:
			st.StampUpdated(at, actor)
		}
	}
}

// Factory builds gateways sharing one registry and store.
type Factory struct {
	registry *Registry
	store    Store
	observer Observer
}

type Option func(*Factory)

func WithObserver(o Observer) Option {
	return func(f *Factory) { f.observer = o }
}

func NewFactory(registry *Registry, store Store, opts ...Option) *Factory {
	f := &Factory{registry: registry, store: store}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) New() *Gateway {
	return &Gateway{
		registry: f.registry,
		store:    f.store,
		observer: f.observer,
		tracker:  NewTracker(),
		index:    make(map[Entity]*Entry),
		attached: make(map[Entity][]any),
	}
}
