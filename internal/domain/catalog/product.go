package catalog

import (
	"errors"
	"math"
	"strings"
)

var (
	ErrUnauthorized        = errors.New("catalog: caller is not the administrator")
	ErrBlankField          = errors.New("catalog: required field is blank")
	ErrIllegalQuantity     = errors.New("catalog: illegal quantity")
	ErrIllegalPrice        = errors.New("catalog: price must be greater than zero")
	ErrProductNotFound     = errors.New("catalog: product not found")
	ErrProductExists       = errors.New("catalog: product name already registered")
	ErrOutOfStock          = errors.New("catalog: insufficient stock")
	ErrAlreadyOwned        = errors.New("catalog: product already owned by caller")
	ErrInsufficientPayment = errors.New("catalog: paid amount below required price")
	ErrNotOwned            = errors.New("catalog: caller does not own the product")
	ErrWarrantyExpired     = errors.New("catalog: warranty window has expired")
	ErrHasActiveOwners     = errors.New("catalog: product still has active owners")
)

// Address identifies a caller (buyer or administrator) as supplied by the
// identity collaborator. The ledger treats it as an opaque stable key.
type Address string

// Product is the unit of the catalog. Name is immutable once assigned; only
// quantity, price, and escrow change over its lifetime.
type Product struct {
	ID        uint64
	Name      string
	Quantity  uint64
	UnitPrice uint64
	TotalSold uint64
	Escrow    uint64
}

func NewProduct(name string, quantity, price uint64) (*Product, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrBlankField
	}
	if quantity == 0 {
		return nil, ErrIllegalQuantity
	}
	if price == 0 {
		return nil, ErrIllegalPrice
	}
	return &Product{
		Name:      name,
		Quantity:  quantity,
		UnitPrice: price,
	}, nil
}

// Restock increases the available quantity. Amounts that would wrap the
// counter are rejected.
func (p *Product) Restock(amount uint64) error {
	if amount == 0 || amount > math.MaxUint64-p.Quantity {
		return ErrIllegalQuantity
	}
	p.Quantity += amount
	return nil
}

// Reduce lowers the available quantity; it cannot drop below zero.
func (p *Product) Reduce(amount uint64) error {
	if amount == 0 || amount > p.Quantity {
		return ErrIllegalQuantity
	}
	p.Quantity -= amount
	return nil
}

func (p *Product) SetPrice(price uint64) error {
	if price == 0 {
		return ErrIllegalPrice
	}
	p.UnitPrice = price
	return nil
}

// CoversPrice reports whether paid is enough for the given quantity at the
// current unit price. The comparison divides instead of multiplying, so a
// quantity times price product that would wrap uint64 cannot pass as a small
// required amount.
func (p *Product) CoversPrice(quantity, paid uint64) bool {
	if quantity == 0 {
		return false
	}
	return paid/quantity >= p.UnitPrice
}

// Sell takes quantity out of stock and accrues the paid amount into escrow.
// Overpayment is retained, not refunded.
func (p *Product) Sell(quantity, paid uint64) error {
	if quantity == 0 {
		return ErrIllegalQuantity
	}
	if quantity > p.Quantity {
		return ErrOutOfStock
	}
	if !p.CoversPrice(quantity, paid) {
		return ErrInsufficientPayment
	}
	p.Quantity -= quantity
	p.TotalSold += quantity
	p.Escrow += paid
	return nil
}

// Restitute puts a returned quantity back into stock. Escrow is untouched;
// returns affect inventory, not revenue.
func (p *Product) Restitute(quantity uint64) {
	p.Quantity += quantity
}

// DrainEscrow zeroes the escrow balance and reports the amount released.
func (p *Product) DrainEscrow() uint64 {
	amount := p.Escrow
	p.Escrow = 0
	return amount
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
