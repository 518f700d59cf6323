package rafflehandlers

import (
	"context"
	"math/big"
	"time"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/results"
)

// ------------------------
// Fake Raffle Service
// ------------------------

type FakeRaffleService struct {
	trace []string

	EnterFunc              func(ctx context.Context, account raffledomain.Account, value *big.Int) (raffleservice.EnterResult, error)
	SnapshotFunc           func(ctx context.Context) raffledomain.Snapshot
	CheckUpkeepFunc        func(ctx context.Context) raffledomain.UpkeepStatus
	PerformUpkeepFunc      func(ctx context.Context) (raffleservice.UpkeepResult, error)
	FulfillRandomWordsFunc func(ctx context.Context, requestID raffledomain.RequestID, words []*big.Int) (raffleservice.FulfillResult, error)
	RetryPayoutFunc        func(ctx context.Context) (raffleservice.FulfillResult, error)
	GetPlayerFunc          func(ctx context.Context, index int) (raffledomain.Account, error)
	ListWinnersFunc        func(ctx context.Context, limit int) ([]raffledomain.Winner, error)
}

func NewFakeRaffleService() *FakeRaffleService {
	return &FakeRaffleService{trace: []string{}}
}

func (f *FakeRaffleService) record(step string) {
	f.trace = append(f.trace, step)
}

// --- Service Interface Implementation ---

func (f *FakeRaffleService) Enter(ctx context.Context, account raffledomain.Account, value *big.Int) (raffleservice.EnterResult, error) {
	f.record("Enter")
	if f.EnterFunc != nil {
		return f.EnterFunc(ctx, account, value)
	}
	return results.SuccessResult[raffleservice.EnterOutcome, error](raffleservice.EnterOutcome{Account: account, Value: value}), nil
}

func (f *FakeRaffleService) Snapshot(ctx context.Context) raffledomain.Snapshot {
	f.record("Snapshot")
	if f.SnapshotFunc != nil {
		return f.SnapshotFunc(ctx)
	}
	return raffledomain.Snapshot{RoundNumber: 1, Pool: big.NewInt(0)}
}

func (f *FakeRaffleService) CheckUpkeep(ctx context.Context) raffledomain.UpkeepStatus {
	f.record("CheckUpkeep")
	if f.CheckUpkeepFunc != nil {
		return f.CheckUpkeepFunc(ctx)
	}
	return raffledomain.UpkeepStatus{Reason: raffledomain.UpkeepNoPlayers, Pool: big.NewInt(0)}
}

func (f *FakeRaffleService) PerformUpkeep(ctx context.Context) (raffleservice.UpkeepResult, error) {
	f.record("PerformUpkeep")
	if f.PerformUpkeepFunc != nil {
		return f.PerformUpkeepFunc(ctx)
	}
	return results.SuccessResult[raffleservice.RoundRequested, error](raffleservice.RoundRequested{RequestID: "1"}), nil
}

func (f *FakeRaffleService) FulfillRandomWords(ctx context.Context, requestID raffledomain.RequestID, words []*big.Int) (raffleservice.FulfillResult, error) {
	f.record("FulfillRandomWords")
	if f.FulfillRandomWordsFunc != nil {
		return f.FulfillRandomWordsFunc(ctx, requestID, words)
	}
	return results.SuccessResult[raffledomain.Winner, error](raffledomain.Winner{RequestID: requestID}), nil
}

func (f *FakeRaffleService) RetryPayout(ctx context.Context) (raffleservice.FulfillResult, error) {
	f.record("RetryPayout")
	if f.RetryPayoutFunc != nil {
		return f.RetryPayoutFunc(ctx)
	}
	return results.FailureResult[raffledomain.Winner, error](raffledomain.ErrNothingToRetry), nil
}

func (f *FakeRaffleService) GetPlayer(ctx context.Context, index int) (raffledomain.Account, error) {
	f.record("GetPlayer")
	if f.GetPlayerFunc != nil {
		return f.GetPlayerFunc(ctx, index)
	}
	return "", raffledomain.ErrPlayerIndexOutOfRange
}

func (f *FakeRaffleService) Config() raffledomain.Config {
	f.record("Config")
	return raffledomain.Config{EntranceFee: big.NewInt(10), Interval: 30 * time.Second}
}

func (f *FakeRaffleService) ListWinners(ctx context.Context, limit int) ([]raffledomain.Winner, error) {
	f.record("ListWinners")
	if f.ListWinnersFunc != nil {
		return f.ListWinnersFunc(ctx, limit)
	}
	return nil, nil
}

func (f *FakeRaffleService) Restore(ctx context.Context) error {
	f.record("Restore")
	return nil
}

// --- Accessors for assertions ---

func (f *FakeRaffleService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ raffleservice.Service = (*FakeRaffleService)(nil)
