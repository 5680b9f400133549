package ledger

import (
	"context"
	"errors"

	"github.com/limetech/storeledger/internal/domain/catalog"
)

// Read-only projections over ledger state. No side effects, no locking beyond
// the repository's own read guard.

// GetProduct returns a snapshot of one product.
func (s *Service) GetProduct(ctx context.Context, productID uint64) (*catalog.Product, error) {
	return s.products.FindByID(ctx, productID)
}

// ListProductIDs enumerates product ids in insertion order.
func (s *Service) ListProductIDs(ctx context.Context) ([]uint64, error) {
	return s.products.ListIDs(ctx)
}

// ListProducts returns snapshots of every product in insertion order.
func (s *Service) ListProducts(ctx context.Context) ([]*catalog.Product, error) {
	ids, err := s.products.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*catalog.Product, 0, len(ids))
	for _, id := range ids {
		product, err := s.products.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, product)
	}
	return out, nil
}

// OwnedQuantity reports how many units of the product the buyer currently
// holds; zero when no active ownership exists.
func (s *Service) OwnedQuantity(ctx context.Context, productID uint64, buyer catalog.Address) (uint64, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return 0, err
	}
	ownership, err := s.products.Ownership(ctx, productID, buyer)
	if err != nil {
		if errors.Is(err, catalog.ErrNotOwned) {
			return 0, nil
		}
		return 0, err
	}
	return ownership.Quantity, nil
}

// PurchaseTick reports the clock tick of the purchase that established the
// buyer's current warranty eligibility.
func (s *Service) PurchaseTick(ctx context.Context, productID uint64, buyer catalog.Address) (uint64, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return 0, err
	}
	ownership, err := s.products.Ownership(ctx, productID, buyer)
	if err != nil {
		return 0, err
	}
	return ownership.PurchasedAt, nil
}

// OwnersOf lists buyers with an active ownership of the product, in
// first-purchase order.
func (s *Service) OwnersOf(ctx context.Context, productID uint64) ([]catalog.Address, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.products.OwnersOf(ctx, productID)
}
