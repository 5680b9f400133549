package audit

import (
	"context"
	"testing"

	domain "github.com/limetech/storeledger/internal/domain/catalog"
	domoutbox "github.com/limetech/storeledger/internal/domain/outbox"
)

// syncBus delivers events to handlers inline, so tests observe the trail
// without a running dispatch loop.
type syncBus struct {
	handlers map[string][]domoutbox.Handler
}

func newSyncBus() *syncBus {
	return &syncBus{handlers: make(map[string][]domoutbox.Handler)}
}

func (b *syncBus) Subscribe(eventName string, h domoutbox.Handler) {
	b.handlers[eventName] = append(b.handlers[eventName], h)
}

func (b *syncBus) publish(t *testing.T, e domoutbox.Event) {
	t.Helper()
	for _, h := range b.handlers[e.EventName()] {
		if err := h(context.Background(), e); err != nil {
			t.Fatalf("handler for %s: %v", e.EventName(), err)
		}
	}
}

func boughtEvent(productID uint64, buyer domain.Address, quantity, paid, tick uint64) domain.ProductBoughtEvent {
	p := &domain.Product{ID: productID, Name: "Keyboard"}
	return domain.NewProductBoughtEvent(p, buyer, quantity, paid, tick)
}

func TestTrailRecordsEveryLedgerEvent(t *testing.T) {
	trail := NewTrail(nil)
	bus := newSyncBus()
	trail.Start(bus)

	p := &domain.Product{ID: 1, Name: "Keyboard", Quantity: 5, UnitPrice: 10}
	bus.publish(t, domain.NewProductAddedEvent(p, 1))
	bus.publish(t, domain.NewQuantityIncreasedEvent(p, 3, 2))
	bus.publish(t, domain.NewPriceChangedEvent(p, 3))
	bus.publish(t, boughtEvent(1, "alice", 2, 20, 4))
	bus.publish(t, domain.NewProductReturnedEvent(p, "alice", 2, 5))
	bus.publish(t, domain.NewPaymentWithdrawnEvent(p, "admin", 20, 6))
	bus.publish(t, domain.NewProductRemovedEvent(p, 7))

	entries := trail.Entries()
	if len(entries) != 7 {
		t.Fatalf("expected 7 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.ID == "" {
			t.Fatalf("entry %d has no id", i)
		}
		if entry.ProductID != 1 {
			t.Fatalf("entry %d has product id %d", i, entry.ProductID)
		}
	}

	bought := entries[3]
	if bought.Event != "catalog.product_bought" || bought.Actor != "alice" || bought.Quantity != 2 || bought.Amount != 20 || bought.Tick != 4 {
		t.Fatalf("unexpected bought entry: %+v", bought)
	}
	withdrawn := entries[5]
	if withdrawn.Actor != "admin" || withdrawn.Amount != 20 {
		t.Fatalf("unexpected withdrawn entry: %+v", withdrawn)
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	trail := NewTrail(nil)
	bus := newSyncBus()
	trail.Start(bus)

	bus.publish(t, boughtEvent(1, "alice", 1, 10, 1))

	entries := trail.Entries()
	entries[0].Actor = "mallory"

	if trail.Entries()[0].Actor != "alice" {
		t.Fatalf("trail mutated through returned slice")
	}
}

func TestBuyersOfDeduplicatesInFirstPurchaseOrder(t *testing.T) {
	trail := NewTrail(nil)
	bus := newSyncBus()
	trail.Start(bus)

	bus.publish(t, boughtEvent(1, "alice", 1, 10, 1))
	bus.publish(t, boughtEvent(1, "bob", 1, 10, 2))
	bus.publish(t, boughtEvent(2, "carol", 1, 10, 3))
	// alice returns and buys again; she is still one historical buyer
	p := &domain.Product{ID: 1, Name: "Keyboard"}
	bus.publish(t, domain.NewProductReturnedEvent(p, "alice", 1, 4))
	bus.publish(t, boughtEvent(1, "alice", 1, 10, 5))

	buyers := trail.BuyersOf(1)
	if len(buyers) != 2 || buyers[0] != "alice" || buyers[1] != "bob" {
		t.Fatalf("unexpected buyers: %v", buyers)
	}
	if buyers := trail.BuyersOf(2); len(buyers) != 1 || buyers[0] != "carol" {
		t.Fatalf("unexpected buyers for product 2: %v", buyers)
	}
	if buyers := trail.BuyersOf(3); len(buyers) != 0 {
		t.Fatalf("expected no buyers, got %v", buyers)
	}
}
