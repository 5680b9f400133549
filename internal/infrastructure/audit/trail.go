package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	domain "github.com/limetech/storeledger/internal/domain/catalog"
	domoutbox "github.com/limetech/storeledger/internal/domain/outbox"
	"github.com/limetech/storeledger/internal/observability"
	"github.com/limetech/storeledger/internal/observability/logctx"
)

// Entry is one line of the append-only audit trail.
type Entry struct {
	ID         string
	Event      string
	ProductID  uint64
	Actor      domain.Address
	Quantity   uint64
	Amount     uint64
	Tick       uint64
	RecordedAt time.Time
}

// Trail consumes every ledger event and keeps an append-only record. It backs
// the historical-buyers projection, which reconstructs who ever bought a
// product purely from the event stream.
type Trail struct {
	mu      sync.RWMutex
	entries []Entry
	log     observability.Logger
}

func NewTrail(logger observability.Logger) *Trail {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Trail{
		log: logger.With(observability.F("component", "audit_trail")),
	}
}

// Start registers the trail for every ledger event name.
func (t *Trail) Start(subscriber domoutbox.Subscriber) {
	if subscriber == nil {
		return
	}
	names := []string{
		domain.ProductAddedEvent{}.EventName(),
		domain.QuantityIncreasedEvent{}.EventName(),
		domain.QuantityDecreasedEvent{}.EventName(),
		domain.PriceChangedEvent{}.EventName(),
		domain.ProductBoughtEvent{}.EventName(),
		domain.ProductReturnedEvent{}.EventName(),
		domain.ProductRemovedEvent{}.EventName(),
		domain.PaymentWithdrawnEvent{}.EventName(),
	}
	for _, name := range names {
		subscriber.Subscribe(name, t.record)
	}
}

func (t *Trail) record(ctx context.Context, e domoutbox.Event) error {
	entry := Entry{
		ID:         uuid.NewString(),
		Event:      e.EventName(),
		RecordedAt: time.Now().UTC(),
	}

	switch evt := e.(type) {
	case domain.ProductAddedEvent:
		entry.ProductID, entry.Quantity, entry.Tick = evt.ProductID, evt.Quantity, evt.Tick
	case domain.QuantityIncreasedEvent:
		entry.ProductID, entry.Quantity, entry.Tick = evt.ProductID, evt.Amount, evt.Tick
	case domain.QuantityDecreasedEvent:
		entry.ProductID, entry.Quantity, entry.Tick = evt.ProductID, evt.Amount, evt.Tick
	case domain.PriceChangedEvent:
		entry.ProductID, entry.Amount, entry.Tick = evt.ProductID, evt.UnitPrice, evt.Tick
	case domain.ProductBoughtEvent:
		entry.ProductID, entry.Actor, entry.Quantity, entry.Amount, entry.Tick = evt.ProductID, evt.Buyer, evt.Quantity, evt.Paid, evt.Tick
	case domain.ProductReturnedEvent:
		entry.ProductID, entry.Actor, entry.Quantity, entry.Tick = evt.ProductID, evt.Buyer, evt.Quantity, evt.Tick
	case domain.ProductRemovedEvent:
		entry.ProductID, entry.Tick = evt.ProductID, evt.Tick
	case domain.PaymentWithdrawnEvent:
		entry.ProductID, entry.Actor, entry.Amount, entry.Tick = evt.ProductID, evt.Recipient, evt.Amount, evt.Tick
	default:
		logctx.FromOr(ctx, t.log).Debug("audit_unknown_event",
			observability.F("event", e.EventName()),
		)
		return nil
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()

	logctx.FromOr(ctx, t.log).Debug("audit_recorded",
		observability.F("event", entry.Event),
		observability.F("product_id", entry.ProductID),
	)
	return nil
}

// Entries returns a copy of the trail in recording order.
func (t *Trail) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry(nil), t.entries...)
}

// BuyersOf reconstructs every address that ever bought the product, in first
// purchase order, from the event stream alone.
func (t *Trail) BuyersOf(productID uint64) []domain.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[domain.Address]struct{})
	var buyers []domain.Address
	for _, entry := range t.entries {
		if entry.Event != (domain.ProductBoughtEvent{}).EventName() || entry.ProductID != productID {
			continue
		}
		if _, dup := seen[entry.Actor]; dup {
			continue
		}
		seen[entry.Actor] = struct{}{}
		buyers = append(buyers, entry.Actor)
	}
	return buyers
}
