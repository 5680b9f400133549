package catalog

// Ownership records the quantity of a product held by one buyer, together
// with the clock tick of the purchase that established warranty eligibility.
// At most one active record exists per (product, buyer) pair.
type Ownership struct {
	ProductID   uint64
	Buyer       Address
	Quantity    uint64
	PurchasedAt uint64
}

func NewOwnership(productID uint64, buyer Address, quantity, tick uint64) (*Ownership, error) {
	if quantity == 0 {
		return nil, ErrIllegalQuantity
	}
	return &Ownership{
		ProductID:   productID,
		Buyer:       buyer,
		Quantity:    quantity,
		PurchasedAt: tick,
	}, nil
}

// WithinWarranty reports whether a return at the given tick is still covered.
// Ticks are opaque monotonic units; elapsed time is measured by subtraction.
func (o *Ownership) WithinWarranty(now, window uint64) bool {
	return now-o.PurchasedAt <= window
}

// Release gives back quantity units. The record is logically absent once the
// quantity reaches zero; callers must delete it then.
func (o *Ownership) Release(quantity uint64) error {
	if quantity == 0 || quantity > o.Quantity {
		return ErrNotOwned
	}
	o.Quantity -= quantity
	return nil
}

func (o *Ownership) Clone() *Ownership {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}
