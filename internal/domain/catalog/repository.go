package catalog

import "context"

// Repository persists products and ownership records. Insert assigns the next
// sequential product id and enforces name uniqueness among active products.
type Repository interface {
	Insert(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id uint64) (*Product, error)
	FindByName(ctx context.Context, name string) (*Product, error)
	Update(ctx context.Context, p *Product) error
	Remove(ctx context.Context, id uint64) error
	// ListIDs enumerates product ids in insertion order.
	ListIDs(ctx context.Context) ([]uint64, error)

	Ownership(ctx context.Context, productID uint64, buyer Address) (*Ownership, error)
	SaveOwnership(ctx context.Context, o *Ownership) error
	DeleteOwnership(ctx context.Context, productID uint64, buyer Address) error
	// OwnersOf lists buyers holding an active ownership of the product, in
	// first-purchase order.
	OwnersOf(ctx context.Context, productID uint64) ([]Address, error)
}
