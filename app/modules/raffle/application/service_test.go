package raffleservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	rafflemetrics "github.com/Black-And-White-Club/frolf-raffle/internal/observability/metrics/raffle"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturePublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for range msgs {
		p.topics = append(p.topics, topic)
	}
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type testDeps struct {
	svc       *RaffleService
	repo      *FakeRaffleRepo
	oracle    *FakeOracle
	treasury  *FakeTreasury
	clock     *fakeClock
	publisher *capturePublisher
}

var testStart = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) testDeps {
	t.Helper()
	d := testDeps{
		repo:      NewFakeRaffleRepo(),
		oracle:    &FakeOracle{},
		treasury:  &FakeTreasury{},
		clock:     &fakeClock{now: testStart},
		publisher: &capturePublisher{},
	}
	cfg := raffledomain.Config{
		EntranceFee:          big.NewInt(10),
		Interval:             100 * time.Second,
		GasLane:              "0xlane",
		SubscriptionID:       1,
		CallbackGasLimit:     500000,
		RequestConfirmations: 3,
		NumWords:             1,
	}
	svc, err := NewRaffleService(
		cfg, d.repo, d.oracle, d.treasury, d.publisher, d.clock,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		rafflemetrics.NewNoop(),
		noop.NewTracerProvider().Tracer("test"),
		nil,
	)
	require.NoError(t, err)
	d.svc = svc
	return d
}

func (d testDeps) enterAll(t *testing.T, accounts ...raffledomain.Account) {
	t.Helper()
	for _, a := range accounts {
		res, err := d.svc.Enter(context.Background(), a, big.NewInt(10))
		require.NoError(t, err)
		require.True(t, res.IsSuccess(), "enter %s", a)
	}
}

// lock enters accounts, waits out the interval and triggers the round.
func (d testDeps) lock(t *testing.T, accounts ...raffledomain.Account) raffledomain.RequestID {
	t.Helper()
	d.enterAll(t, accounts...)
	d.clock.Advance(101 * time.Second)
	res, err := d.svc.PerformUpkeep(context.Background())
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	return res.Success.RequestID
}

func TestNewRaffleService_RejectsInvalidConfig(t *testing.T) {
	_, err := NewRaffleService(raffledomain.Config{}, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestRaffleService_Enter(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(d testDeps)
		value       int64
		wantFailure error
		wantErr     bool
		wantPlayers int
		wantTrace   []string
	}{
		{
			name:        "accepted",
			value:       10,
			wantPlayers: 1,
			wantTrace:   []string{"SaveRound", "AppendEntry"},
		},
		{
			name:        "insufficient fee",
			value:       9,
			wantFailure: raffledomain.ErrInsufficientFee,
			wantTrace:   []string{},
		},
		{
			name: "round calculating",
			setup: func(d testDeps) {
				d.svc.round.Entrants = []raffledomain.Account{"X"}
				d.svc.round.Pool = big.NewInt(10)
				d.svc.round.BeginCalculation("9", testStart)
			},
			value:       10,
			wantFailure: raffledomain.ErrRoundNotOpen,
			wantPlayers: 1,
			wantTrace:   []string{},
		},
		{
			name: "persistence failure leaves round untouched",
			setup: func(d testDeps) {
				d.repo.AppendEntryFunc = func(ctx context.Context, db bun.IDB, entry *raffledb.EntryRecord) error {
					return errors.New("disk full")
				}
			},
			value:     10,
			wantErr:   true,
			wantTrace: []string{"SaveRound", "AppendEntry"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestService(t)
			if tt.setup != nil {
				tt.setup(d)
			}

			res, err := d.svc.Enter(context.Background(), "alice", big.NewInt(tt.value))
			switch {
			case tt.wantErr:
				require.Error(t, err)
			case tt.wantFailure != nil:
				require.NoError(t, err)
				require.True(t, res.IsFailure())
				assert.ErrorIs(t, *res.Failure, tt.wantFailure)
			default:
				require.NoError(t, err)
				require.True(t, res.IsSuccess())
				assert.Equal(t, 0, res.Success.Slot)
				assert.Equal(t, "10", res.Success.Pool.String())
				assert.Equal(t, []string{raffledomain.EnteredV1}, d.publisher.Topics())
			}

			snap := d.svc.Snapshot(context.Background())
			assert.Len(t, snap.Entrants, tt.wantPlayers)
			assert.Equal(t, tt.wantTrace, d.repo.Trace())
		})
	}
}

func TestRaffleService_EnterSumsPool(t *testing.T) {
	d := newTestService(t)
	faker := gofakeit.New(42)

	want := new(big.Int)
	n := 25
	for i := 0; i < n; i++ {
		v := big.NewInt(int64(faker.IntRange(10, 1000)))
		res, err := d.svc.Enter(context.Background(), raffledomain.Account(faker.UUID()), v)
		require.NoError(t, err)
		require.True(t, res.IsSuccess())
		want.Add(want, v)
	}

	snap := d.svc.Snapshot(context.Background())
	assert.Len(t, snap.Entrants, n)
	assert.Equal(t, 0, snap.Pool.Cmp(want), "pool %s != %s", snap.Pool, want)
}

func TestRaffleService_PerformUpkeep(t *testing.T) {
	t.Run("not needed never requests randomness", func(t *testing.T) {
		d := newTestService(t)
		d.enterAll(t, "A")
		d.clock.Advance(10 * time.Second)

		res, err := d.svc.PerformUpkeep(context.Background())
		require.NoError(t, err)
		require.True(t, res.IsFailure())
		assert.ErrorIs(t, *res.Failure, raffledomain.ErrUpkeepNotNeeded)

		var ue *raffledomain.UpkeepError
		require.True(t, errors.As(*res.Failure, &ue))
		assert.Equal(t, raffledomain.UpkeepIntervalNotElapsed, ue.Reason)
		assert.Empty(t, d.oracle.Requests())
		assert.Equal(t, raffledomain.StateOpen, d.svc.Snapshot(context.Background()).State)
	})

	t.Run("oracle failure keeps round open", func(t *testing.T) {
		d := newTestService(t)
		d.oracle.RequestRandomWordsFunc = func(ctx context.Context, req raffledomain.OracleRequest) (raffledomain.RequestID, error) {
			return "", errors.New("subscription underfunded")
		}
		d.enterAll(t, "A")
		d.clock.Advance(101 * time.Second)

		_, err := d.svc.PerformUpkeep(context.Background())
		require.Error(t, err)
		assert.Equal(t, raffledomain.StateOpen, d.svc.Snapshot(context.Background()).State)
		assert.True(t, d.svc.CheckUpkeep(context.Background()).Eligible)
	})

	t.Run("success locks round and passes request parameters", func(t *testing.T) {
		d := newTestService(t)
		id := d.lock(t, "A", "B")

		snap := d.svc.Snapshot(context.Background())
		assert.Equal(t, raffledomain.StateCalculating, snap.State)
		assert.Equal(t, id, snap.PendingRequestID)

		reqs := d.oracle.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, raffledomain.OracleRequest{
			KeyHash:              "0xlane",
			SubscriptionID:       1,
			RequestConfirmations: 3,
			CallbackGasLimit:     500000,
			NumWords:             1,
		}, reqs[0])

		res, err := d.svc.PerformUpkeep(context.Background())
		require.NoError(t, err)
		require.True(t, res.IsFailure())
		assert.ErrorIs(t, *res.Failure, raffledomain.ErrUpkeepNotNeeded)
		assert.Len(t, d.oracle.Requests(), 1)

		enter, err := d.svc.Enter(context.Background(), "C", big.NewInt(10))
		require.NoError(t, err)
		assert.ErrorIs(t, *enter.Failure, raffledomain.ErrRoundNotOpen)

		assert.Contains(t, d.publisher.Topics(), raffledomain.RoundRequestedV1)
	})

	t.Run("persist failure still locks round", func(t *testing.T) {
		d := newTestService(t)
		d.enterAll(t, "A")
		d.clock.Advance(101 * time.Second)
		d.repo.SaveRoundFunc = func(ctx context.Context, db bun.IDB, round *raffledomain.Round) error {
			return errors.New("connection reset")
		}

		_, err := d.svc.PerformUpkeep(context.Background())
		require.Error(t, err)
		assert.Equal(t, raffledomain.StateCalculating, d.svc.Snapshot(context.Background()).State)
		assert.NotContains(t, d.publisher.Topics(), raffledomain.RoundRequestedV1)
	})
}

func TestRaffleService_FulfillRandomWords(t *testing.T) {
	t.Run("unknown request leaves state unchanged", func(t *testing.T) {
		d := newTestService(t)
		id := d.lock(t, "A", "B")

		res, err := d.svc.FulfillRandomWords(context.Background(), id+"0", []*big.Int{big.NewInt(1)})
		require.NoError(t, err)
		require.True(t, res.IsFailure())
		assert.ErrorIs(t, *res.Failure, raffledomain.ErrUnknownRequest)

		snap := d.svc.Snapshot(context.Background())
		assert.Equal(t, raffledomain.StateCalculating, snap.State)
		assert.Equal(t, id, snap.PendingRequestID)
		assert.Empty(t, d.treasury.Transfers())
	})

	t.Run("no pending request", func(t *testing.T) {
		d := newTestService(t)
		res, err := d.svc.FulfillRandomWords(context.Background(), "1", []*big.Int{big.NewInt(1)})
		require.NoError(t, err)
		assert.ErrorIs(t, *res.Failure, raffledomain.ErrUnknownRequest)
	})

	t.Run("empty words", func(t *testing.T) {
		d := newTestService(t)
		id := d.lock(t, "A")
		res, err := d.svc.FulfillRandomWords(context.Background(), id, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, *res.Failure, raffledomain.ErrNoRandomWords)
	})

	t.Run("selects entrants[v mod n]", func(t *testing.T) {
		d := newTestService(t)
		id := d.lock(t, "A", "B", "C", "D")

		res, err := d.svc.FulfillRandomWords(context.Background(), id, []*big.Int{big.NewInt(11)})
		require.NoError(t, err)
		require.True(t, res.IsSuccess())
		assert.Equal(t, raffledomain.Account("D"), res.Success.Winner)
		assert.Equal(t, 3, res.Success.WinnerIndex)
		assert.Equal(t, []string{"RecordWinner", "SaveRound"}, d.repo.Trace()[len(d.repo.Trace())-2:])
	})

	t.Run("redelivery after payout is rejected", func(t *testing.T) {
		d := newTestService(t)
		id := d.lock(t, "A", "B")
		words := []*big.Int{big.NewInt(5)}

		first, err := d.svc.FulfillRandomWords(context.Background(), id, words)
		require.NoError(t, err)
		require.True(t, first.IsSuccess())

		second, err := d.svc.FulfillRandomWords(context.Background(), id, words)
		require.NoError(t, err)
		assert.ErrorIs(t, *second.Failure, raffledomain.ErrUnknownRequest)
		assert.Len(t, d.treasury.Transfers(), 1)
	})
}

func TestRaffleService_PayoutFailureAndRetry(t *testing.T) {
	d := newTestService(t)
	id := d.lock(t, "A", "B", "C")

	fail := true
	d.treasury.TransferFunc = func(ctx context.Context, transfer raffledomain.Transfer) error {
		if fail {
			return errors.New("recipient frozen")
		}
		return nil
	}

	res, err := d.svc.FulfillRandomWords(context.Background(), id, []*big.Int{big.NewInt(7)})
	require.NoError(t, err)
	require.True(t, res.IsFailure())
	assert.ErrorIs(t, *res.Failure, raffledomain.ErrPayoutFailed)

	var pe *raffledomain.PayoutError
	require.True(t, errors.As(*res.Failure, &pe))
	assert.Equal(t, raffledomain.Account("B"), pe.Winner)
	assert.Equal(t, "30", pe.Amount.String())

	snap := d.svc.Snapshot(context.Background())
	assert.Equal(t, raffledomain.StateCalculating, snap.State)
	assert.Equal(t, "30", snap.Pool.String())
	assert.Len(t, snap.Entrants, 3)

	fail = false

	// A redelivery with different words cannot change the winner.
	res, err = d.svc.FulfillRandomWords(context.Background(), id, []*big.Int{big.NewInt(0)})
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Equal(t, raffledomain.Account("B"), res.Success.Winner)

	transfers := d.treasury.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, PayoutReference(1, id), transfers[0].Reference)
}

func TestRaffleService_RetryPayout(t *testing.T) {
	d := newTestService(t)

	res, err := d.svc.RetryPayout(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, *res.Failure, raffledomain.ErrNothingToRetry)

	id := d.lock(t, "A", "B")
	attempts := 0
	d.treasury.TransferFunc = func(ctx context.Context, transfer raffledomain.Transfer) error {
		attempts++
		if attempts == 1 {
			return errors.New("treasury offline")
		}
		return nil
	}

	res, err = d.svc.FulfillRandomWords(context.Background(), id, []*big.Int{big.NewInt(3)})
	require.NoError(t, err)
	require.True(t, res.IsFailure())

	res, err = d.svc.RetryPayout(context.Background())
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Equal(t, raffledomain.Account("B"), res.Success.Winner)
	assert.Equal(t, raffledomain.StateOpen, d.svc.Snapshot(context.Background()).State)
}

func TestRaffleService_ConcurrentFulfillmentPaysOnce(t *testing.T) {
	d := newTestService(t)
	id := d.lock(t, "A", "B", "C", "D")

	const callers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.svc.FulfillRandomWords(context.Background(), id, []*big.Int{big.NewInt(17)})
			if err == nil && res.IsSuccess() {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, d.treasury.Transfers(), 1)
}

func TestRaffleService_EndToEnd(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	d.enterAll(t, "A", "B", "C", "D")
	assert.Equal(t, "40", d.svc.Snapshot(ctx).Pool.String())
	assert.False(t, d.svc.CheckUpkeep(ctx).Eligible)

	d.clock.Advance(101 * time.Second)
	require.True(t, d.svc.CheckUpkeep(ctx).Eligible)

	up, err := d.svc.PerformUpkeep(ctx)
	require.NoError(t, err)
	require.True(t, up.IsSuccess())

	res, err := d.svc.FulfillRandomWords(ctx, up.Success.RequestID, []*big.Int{big.NewInt(17)})
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Equal(t, raffledomain.Account("B"), res.Success.Winner)

	transfers := d.treasury.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, raffledomain.Account("B"), transfers[0].Recipient)
	assert.Equal(t, "40", transfers[0].Amount.String())

	snap := d.svc.Snapshot(ctx)
	assert.Equal(t, raffledomain.StateOpen, snap.State)
	assert.Empty(t, snap.Entrants)
	assert.Equal(t, 0, snap.Pool.Sign())
	assert.Equal(t, uint64(2), snap.RoundNumber)
	assert.Equal(t, raffledomain.Account("B"), snap.RecentWinner)
	assert.Equal(t, d.clock.Now(), snap.OpenedAt)

	assert.Equal(t, []string{
		raffledomain.EnteredV1, raffledomain.EnteredV1, raffledomain.EnteredV1, raffledomain.EnteredV1,
		raffledomain.RoundRequestedV1,
		raffledomain.WinnerPickedV1,
	}, d.publisher.Topics())
}

func TestRaffleService_Queries(t *testing.T) {
	d := newTestService(t)
	d.enterAll(t, "A", "B")

	p, err := d.svc.GetPlayer(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, raffledomain.Account("B"), p)

	_, err = d.svc.GetPlayer(context.Background(), 2)
	assert.ErrorIs(t, err, raffledomain.ErrPlayerIndexOutOfRange)

	cfg := d.svc.Config()
	cfg.EntranceFee.SetInt64(1)
	assert.Equal(t, "10", d.svc.Config().EntranceFee.String())

	d.repo.ListWinnersFunc = func(ctx context.Context, db bun.IDB, limit int) ([]raffledomain.Winner, error) {
		assert.Equal(t, 5, limit)
		return []raffledomain.Winner{{RoundNumber: 1, Winner: "A"}}, nil
	}
	winners, err := d.svc.ListWinners(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, winners, 1)
}

func TestRaffleService_Restore(t *testing.T) {
	t.Run("empty store persists the fresh round", func(t *testing.T) {
		d := newTestService(t)
		require.NoError(t, d.svc.Restore(context.Background()))
		assert.Equal(t, []string{"LoadCurrentRound", "SaveRound"}, d.repo.Trace())
	})

	t.Run("resumes calculating round", func(t *testing.T) {
		d := newTestService(t)
		stored := raffledomain.NewRound(testStart)
		stored.Number = 4
		stored.Entrants = []raffledomain.Account{"A", "B"}
		stored.Pool = big.NewInt(20)
		stored.BeginCalculation("77", testStart)
		d.repo.LoadCurrentRoundFunc = func(ctx context.Context, db bun.IDB) (*raffledomain.Round, error) {
			return stored, nil
		}

		require.NoError(t, d.svc.Restore(context.Background()))
		res, err := d.svc.FulfillRandomWords(context.Background(), "77", []*big.Int{big.NewInt(2)})
		require.NoError(t, err)
		require.True(t, res.IsSuccess())
		assert.Equal(t, uint64(4), res.Success.RoundNumber)
		assert.Equal(t, PayoutReference(4, "77"), d.treasury.Transfers()[0].Reference)
	})

	t.Run("load error", func(t *testing.T) {
		d := newTestService(t)
		d.repo.LoadCurrentRoundFunc = func(ctx context.Context, db bun.IDB) (*raffledomain.Round, error) {
			return nil, fmt.Errorf("relation does not exist")
		}
		assert.Error(t, d.svc.Restore(context.Background()))
	})
}
