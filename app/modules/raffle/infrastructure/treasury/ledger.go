package raffletreasury

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/uptrace/bun"
)

// PayoutRecord marks a reference as paid.
type PayoutRecord struct {
	bun.BaseModel `bun:"table:raffle_payouts,alias:rp"`

	Reference string    `bun:"reference,pk,type:varchar(128)"`
	Recipient string    `bun:"recipient,notnull,type:varchar(128)"`
	Amount    string    `bun:"amount,notnull,type:numeric(78,0)"`
	PaidAt    time.Time `bun:"paid_at,notnull"`
}

// BalanceRecord is the running balance of one account.
type BalanceRecord struct {
	bun.BaseModel `bun:"table:account_balances,alias:ab"`

	Account   string    `bun:"account,pk,type:varchar(128)"`
	Balance   string    `bun:"balance,notnull,type:numeric(78,0)"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Ledger is a Postgres backed treasury. Each transfer runs in its own
// transaction, independent of the caller's round transaction.
type Ledger struct {
	db *bun.DB
}

func NewLedger(db *bun.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Transfer(ctx context.Context, t raffledomain.Transfer) error {
	if err := validate(t); err != nil {
		return err
	}
	now := time.Now().UTC()

	return l.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(&PayoutRecord{
				Reference: t.Reference,
				Recipient: string(t.Recipient),
				Amount:    t.Amount.String(),
				PaidAt:    now,
			}).
			On("CONFLICT (reference) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record payout %s: %w", t.Reference, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			// already paid
			return nil
		}

		_, err = tx.NewInsert().
			Model(&BalanceRecord{
				Account:   string(t.Recipient),
				Balance:   t.Amount.String(),
				UpdatedAt: now,
			}).
			On("CONFLICT (account) DO UPDATE").
			Set("balance = ab.balance + EXCLUDED.balance").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to credit %s: %w", t.Recipient, err)
		}
		return nil
	})
}

func (l *Ledger) Balance(ctx context.Context, account raffledomain.Account) (*big.Int, error) {
	rec := new(BalanceRecord)
	err := l.db.NewSelect().Model(rec).Where("account = ?", string(account)).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("failed to read balance of %s: %w", account, err)
	}
	return raffledomain.ParseAmount(rec.Balance)
}

var _ Treasury = (*Ledger)(nil)
