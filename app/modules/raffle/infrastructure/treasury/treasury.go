package raffletreasury

import (
	"context"
	"errors"
	"math/big"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
)

var (
	// ErrInvalidTransfer is returned for transfers without a reference or recipient.
	ErrInvalidTransfer = errors.New("invalid transfer")
	// ErrNegativeAmount is returned for negative transfer amounts.
	ErrNegativeAmount = errors.New("negative transfer amount")
)

// Treasury applies payouts and reports account balances.
type Treasury interface {
	Transfer(ctx context.Context, transfer raffledomain.Transfer) error
	Balance(ctx context.Context, account raffledomain.Account) (*big.Int, error)
}

func validate(t raffledomain.Transfer) error {
	if t.Reference == "" || t.Recipient == "" || t.Amount == nil {
		return ErrInvalidTransfer
	}
	if t.Amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return nil
}
