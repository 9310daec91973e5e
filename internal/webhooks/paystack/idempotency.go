package paystack

import (
	"context"
	"time"

	"github.com/SimelweN/rebooked-backend/pkg/logger"
)

const dedupeScope = "webhook"

// dedupeStore is the slice of the redis client the guard needs.
type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// dedupeGuard short-circuits redelivered events. It is an optimization, not
// the correctness mechanism: the database's unique constraints decide what
// actually happens, so a missing or unreachable redis fails open.
type dedupeGuard struct {
	store dedupeStore
	ttl   time.Duration
	logg  *logger.Logger
}

func newDedupeGuard(store dedupeStore, ttl time.Duration, logg *logger.Logger) *dedupeGuard {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &dedupeGuard{store: store, ttl: ttl, logg: logg}
}

// firstDelivery reports whether this event+reference pair has not been seen
// within the dedupe window.
func (g *dedupeGuard) firstDelivery(ctx context.Context, event, reference string) bool {
	if g.store == nil || reference == "" {
		return true
	}
	key := g.store.IdempotencyKey(dedupeScope, event+":"+reference)
	ok, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		g.logg.Warn(ctx, "webhook dedupe store unavailable, processing anyway")
		return true
	}
	return ok
}
