package raffleservice

import (
	"context"
	"math/big"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/results"
)

// EnterOutcome describes an accepted entry.
type EnterOutcome struct {
	RoundNumber uint64
	Account     raffledomain.Account
	Value       *big.Int
	Slot        int
	Pool        *big.Int
	EnteredAt   time.Time
}

// RoundRequested describes a round that is waiting for randomness.
type RoundRequested struct {
	RoundNumber uint64
	RequestID   raffledomain.RequestID
	Players     int
	Pool        *big.Int
	RequestedAt time.Time
}

// Result aliases keep the generic signatures readable.
type (
	EnterResult   = results.OperationResult[EnterOutcome, error]
	UpkeepResult  = results.OperationResult[RoundRequested, error]
	FulfillResult = results.OperationResult[raffledomain.Winner, error]
)

// Service is the raffle state machine. Mutating operations are serialized;
// queries observe a consistent copy of the round.
type Service interface {
	Enter(ctx context.Context, account raffledomain.Account, value *big.Int) (EnterResult, error)
	Snapshot(ctx context.Context) raffledomain.Snapshot
	CheckUpkeep(ctx context.Context) raffledomain.UpkeepStatus
	PerformUpkeep(ctx context.Context) (UpkeepResult, error)
	FulfillRandomWords(ctx context.Context, requestID raffledomain.RequestID, words []*big.Int) (FulfillResult, error)
	RetryPayout(ctx context.Context) (FulfillResult, error)

	GetPlayer(ctx context.Context, index int) (raffledomain.Account, error)
	Config() raffledomain.Config
	ListWinners(ctx context.Context, limit int) ([]raffledomain.Winner, error)
	Restore(ctx context.Context) error
}

// OracleClient issues randomness requests. RequestRandomWords must not call
// back into the Service on the calling goroutine.
type OracleClient interface {
	RequestRandomWords(ctx context.Context, req raffledomain.OracleRequest) (raffledomain.RequestID, error)
}

// Treasury moves pooled value to a winner. Transfers sharing a Reference
// are applied at most once.
type Treasury interface {
	Transfer(ctx context.Context, transfer raffledomain.Transfer) error
}

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
