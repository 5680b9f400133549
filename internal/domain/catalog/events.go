package catalog

import "time"

// Domain events form the append-only audit trail of the ledger. They are the
// only mechanism for reconstructing historical ownership without a reverse
// index. Every successful mutation emits exactly one event.

type ProductAddedEvent struct {
	ProductID  uint64
	Name       string
	Quantity   uint64
	UnitPrice  uint64
	Tick       uint64
	OccurredAt time.Time
}

func (ProductAddedEvent) EventName() string { return "catalog.product_added" }

func NewProductAddedEvent(p *Product, tick uint64) ProductAddedEvent {
	return ProductAddedEvent{
		ProductID:  p.ID,
		Name:       p.Name,
		Quantity:   p.Quantity,
		UnitPrice:  p.UnitPrice,
		Tick:       tick,
		OccurredAt: time.Now().UTC(),
	}
}

type QuantityIncreasedEvent struct {
	ProductID  uint64
	Amount     uint64
	Quantity   uint64
	Tick       uint64
	OccurredAt time.Time
}

func (QuantityIncreasedEvent) EventName() string { return "catalog.quantity_increased" }

func NewQuantityIncreasedEvent(p *Product, amount, tick uint64) QuantityIncreasedEvent {
	return QuantityIncreasedEvent{
		ProductID:  p.ID,
		Amount:     amount,
		Quantity:   p.Quantity,
		Tick:       tick,
		OccurredAt: time.Now().UTC(),
	}
}

type QuantityDecreasedEvent struct {
	ProductID  uint64
	Amount     uint64
	Quantity   uint64
	Tick       uint64
	OccurredAt time.Time
}

func (QuantityDecreasedEvent) EventName() string { return "catalog.quantity_decreased" }

func NewQuantityDecreasedEvent(p *Product, amount, tick uint64) QuantityDecreasedEvent {
	return QuantityDecreasedEvent{
		ProductID:  p.ID,
		Amount:     amount,
		Quantity:   p.Quantity,
		Tick:       tick,
		OccurredAt: time.Now().UTC(),
	}
}

type PriceChangedEvent struct {
	ProductID  uint64
	UnitPrice  uint64
	Tick       uint64
	OccurredAt time.Time
}

func (PriceChangedEvent) EventName() string { return "catalog.price_changed" }

func NewPriceChangedEvent(p *Product, tick uint64) PriceChangedEvent {
	return PriceChangedEvent{
		ProductID:  p.ID,
		UnitPrice:  p.UnitPrice,
		Tick:       tick,
		OccurredAt: time.Now().UTC(),
	}
}

type ProductBoughtEvent struct {
	ProductID  uint64
	Buyer      Address
	Quantity   uint64
	Paid       uint64
	Tick       uint64
	OccurredAt time.Time
}

func (ProductBoughtEvent) EventName() string { return "catalog.product_bought" }

func NewProductBoughtEvent(p *Product, buyer Address, quantity, paid, tick uint64) ProductBoughtEvent {
	return ProductBoughtEvent{
		ProductID:  p.ID,
		Buyer:      buyer,
		Quantity:   quantity,
		Paid:       paid,
		Tick:       tick,
		OccurredAt: time.Now().UTC(),
	}
}

type ProductReturnedEvent struct {
	ProductID  uint64
	Buyer      Address
	Quantity   uint64
	Tick       uint64
	OccurredAt time.Time
}

func (ProductReturnedEvent) EventName() string { return "catalog.product_returned" }

func NewProductReturnedEvent(p *Product, buyer Address, quantity, tick uint64) ProductReturnedEvent {
	return ProductReturnedEvent{
		ProductID:  p.ID,
		Buyer:      buyer,
		Quantity:   quantity,
		Tick:       tick,
		OccurredAt: time.Now().UTC(),
	}
}

type ProductRemovedEvent struct {
	ProductID  uint64
	Name       string
	Tick       uint64
	OccurredAt time.Time
}

func (ProductRemovedEvent) EventName() string { return "catalog.product_removed" }

func NewProductRemovedEvent(p *Product, tick uint64) ProductRemovedEvent {
	return ProductRemovedEvent{
		ProductID:  p.ID,
		Name:       p.Name,
		Tick:       tick,
		OccurredAt: time.Now().UTC(),
	}
}

type PaymentWithdrawnEvent struct {
	ProductID  uint64
	Amount     uint64
	Recipient  Address
	Tick       uint64
	OccurredAt time.Time
}

func (PaymentWithdrawnEvent) EventName() string { return "catalog.payment_withdrawn" }

func NewPaymentWithdrawnEvent(p *Product, recipient Address, amount, tick uint64) PaymentWithdrawnEvent {
	return PaymentWithdrawnEvent{
		ProductID:  p.ID,
		Amount:     amount,
		Recipient:  recipient,
		Tick:       tick,
		OccurredAt: time.Now().UTC(),
	}
}
