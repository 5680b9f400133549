package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/limetech/storeledger/internal/domain/catalog"
)

// CatalogRepository is the in-memory product and ownership store. Ids are
// sequential and never reused; enumeration follows insertion order.
type CatalogRepository struct {
	mu         sync.RWMutex
	nextID     uint64
	products   map[uint64]*domain.Product
	nameIndex  map[string]uint64
	order      []uint64
	ownerships map[uint64]map[domain.Address]*domain.Ownership
	ownerOrder map[uint64][]domain.Address
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		nextID:     1,
		products:   make(map[uint64]*domain.Product),
		nameIndex:  make(map[string]uint64),
		ownerships: make(map[uint64]map[domain.Address]*domain.Ownership),
		ownerOrder: make(map[uint64][]domain.Address),
	}
}

func (r *CatalogRepository) Insert(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.Name == "" {
		return fmt.Errorf("catalog repository: name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nameIndex[p.Name]; exists {
		return domain.ErrProductExists
	}

	p.ID = r.nextID
	r.nextID++
	r.products[p.ID] = p.Clone()
	r.nameIndex[p.Name] = p.ID
	r.order = append(r.order, p.ID)
	return nil
}

func (r *CatalogRepository) FindByID(ctx context.Context, id uint64) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p.Clone(), nil
}

func (r *CatalogRepository) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.nameIndex[name]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return r.products[id].Clone(), nil
}

func (r *CatalogRepository) Update(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == 0 {
		return fmt.Errorf("catalog repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[p.ID]; !exists {
		return domain.ErrProductNotFound
	}
	r.products[p.ID] = p.Clone()
	return nil
}

func (r *CatalogRepository) Remove(ctx context.Context, id uint64) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}

	delete(r.products, id)
	delete(r.nameIndex, p.Name)
	delete(r.ownerships, id)
	delete(r.ownerOrder, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *CatalogRepository) ListIDs(ctx context.Context) ([]uint64, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]uint64(nil), r.order...), nil
}

func (r *CatalogRepository) Ownership(ctx context.Context, productID uint64, buyer domain.Address) (*domain.Ownership, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.ownerships[productID][buyer]
	if !ok {
		return nil, domain.ErrNotOwned
	}
	return o.Clone(), nil
}

func (r *CatalogRepository) SaveOwnership(ctx context.Context, o *domain.Ownership) error {
	_ = ctx
	if o == nil || o.Buyer == "" {
		return fmt.Errorf("catalog repository: buyer is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byBuyer, ok := r.ownerships[o.ProductID]
	if !ok {
		byBuyer = make(map[domain.Address]*domain.Ownership)
		r.ownerships[o.ProductID] = byBuyer
	}
	if _, exists := byBuyer[o.Buyer]; !exists {
		r.ownerOrder[o.ProductID] = append(r.ownerOrder[o.ProductID], o.Buyer)
	}
	byBuyer[o.Buyer] = o.Clone()
	return nil
}

func (r *CatalogRepository) DeleteOwnership(ctx context.Context, productID uint64, buyer domain.Address) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	byBuyer, ok := r.ownerships[productID]
	if !ok {
		return domain.ErrNotOwned
	}
	if _, exists := byBuyer[buyer]; !exists {
		return domain.ErrNotOwned
	}
	delete(byBuyer, buyer)
	owners := r.ownerOrder[productID]
	for i, addr := range owners {
		if addr == buyer {
			r.ownerOrder[productID] = append(owners[:i], owners[i+1:]...)
			break
		}
	}
	return nil
}

func (r *CatalogRepository) OwnersOf(ctx context.Context, productID uint64) ([]domain.Address, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.Address(nil), r.ownerOrder[productID]...), nil
}
