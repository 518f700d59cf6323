package raffletreasury

import (
	"context"
	"math/big"
	"sync"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
)

// Memory is an in-process ledger used when no database is configured.
type Memory struct {
	mu       sync.Mutex
	balances map[raffledomain.Account]*big.Int
	paid     map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[raffledomain.Account]*big.Int),
		paid:     make(map[string]struct{}),
	}
}

// Transfer credits the recipient once per reference.
func (m *Memory) Transfer(ctx context.Context, t raffledomain.Transfer) error {
	if err := validate(t); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.paid[t.Reference]; ok {
		return nil
	}
	bal, ok := m.balances[t.Recipient]
	if !ok {
		bal = new(big.Int)
	}
	m.balances[t.Recipient] = new(big.Int).Add(bal, t.Amount)
	m.paid[t.Reference] = struct{}{}
	return nil
}

func (m *Memory) Balance(ctx context.Context, account raffledomain.Account) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bal, ok := m.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

var _ Treasury = (*Memory)(nil)
