package ledger

import (
	"context"

	"github.com/limetech/storeledger/internal/domain/catalog"
)

// AccessPolicy is the identity collaborator: it names the administrator and
// answers whether a caller holds that role.
type AccessPolicy interface {
	Admin() catalog.Address
	IsAdmin(caller catalog.Address) bool
}

// Clock is the monotonic counter collaborator (block height in chain terms).
// The ledger samples it once per operation and compares readings by
// subtraction; ticks are opaque units, never wall-clock seconds.
type Clock interface {
	Now() uint64
}

// Treasury is the value-transfer collaborator. Both calls must be atomic with
// the ledger mutation that triggered them: a failed transfer aborts the whole
// operation and nothing persists.
type Treasury interface {
	// Collect moves amount from the buyer into the escrow account of the product.
	Collect(ctx context.Context, from catalog.Address, productID uint64, amount uint64) error
	// Release moves amount out of the product's escrow account to the recipient.
	Release(ctx context.Context, productID uint64, to catalog.Address, amount uint64) error
}
