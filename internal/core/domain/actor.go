package domain

import (
	"context"
	"time"
)

// SystemActor is recorded as the author of changes made without an
// authenticated caller.
const SystemActor = "System"

// Actor identifies who is performing a write and from where.
type Actor struct {
	ID    string
	IP    string
	Agent string
}

func (a Actor) Name() string {
	if a.ID == "" {
		return SystemActor
	}
	return a.ID
}

type ctxKey int

const (
	actorCtxKey ctxKey = iota
	timeCtxKey
)

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

func ActorFrom(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorCtxKey).(Actor)
	return actor
}

// WithTime pins the clock for everything running under ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeCtxKey, t)
}

// Now returns the pinned time of ctx, or the wall clock, always in UTC.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(timeCtxKey).(time.Time); ok && !t.IsZero() {
		return t.UTC()
	}
	return time.Now().UTC()
}
