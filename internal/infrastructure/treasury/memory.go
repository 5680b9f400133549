package treasury

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/limetech/storeledger/internal/domain/catalog"
)

var ErrInsufficientBalance = errors.New("treasury: insufficient balance")

// Memory is the in-memory value-transfer collaborator. It keeps one balance
// per address and one escrow account per product id. Each call moves funds
// under a single lock, so a transfer either fully happens or not at all.
type Memory struct {
	mu       sync.Mutex
	balances map[domain.Address]uint64
	escrow   map[uint64]uint64
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[domain.Address]uint64),
		escrow:   make(map[uint64]uint64),
	}
}

// Deposit funds an address. Test and simulation entry point.
func (m *Memory) Deposit(addr domain.Address, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] += amount
}

// BalanceOf reports the spendable balance of an address.
func (m *Memory) BalanceOf(addr domain.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[addr]
}

// EscrowOf reports the funds held against a product.
func (m *Memory) EscrowOf(productID uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow[productID]
}

func (m *Memory) Collect(ctx context.Context, from domain.Address, productID uint64, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[from] < amount {
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, from)
	}
	m.balances[from] -= amount
	m.escrow[productID] += amount
	return nil
}

func (m *Memory) Release(ctx context.Context, productID uint64, to domain.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.escrow[productID] < amount {
		return fmt.Errorf("%w: escrow of product %d", ErrInsufficientBalance, productID)
	}
	m.escrow[productID] -= amount
	m.balances[to] += amount
	return nil
}
