package raffleadapters

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"testing"
	"time"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	raffletreasury "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/treasury"
	vrfservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// storeRepo keeps raffle state across service instances the way the
// database does: one winner row per round.
type storeRepo struct {
	mu      sync.Mutex
	round   *raffledomain.Round
	winners map[uint64]raffledomain.Winner
}

func newStoreRepo() *storeRepo {
	return &storeRepo{winners: make(map[uint64]raffledomain.Winner)}
}

func (s *storeRepo) LoadCurrentRound(ctx context.Context, db bun.IDB) (*raffledomain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round == nil {
		return nil, raffledb.ErrNotFound
	}
	return s.round.Clone(), nil
}

func (s *storeRepo) SaveRound(ctx context.Context, db bun.IDB, round *raffledomain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.round = round.Clone()
	return nil
}

func (s *storeRepo) AppendEntry(ctx context.Context, db bun.IDB, entry *raffledb.EntryRecord) error {
	return nil
}

func (s *storeRepo) RecordWinner(ctx context.Context, db bun.IDB, winner raffledomain.Winner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.winners[winner.RoundNumber]; !ok {
		s.winners[winner.RoundNumber] = winner
	}
	return nil
}

func (s *storeRepo) ListWinners(ctx context.Context, db bun.IDB, limit int) ([]raffledomain.Winner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]raffledomain.Winner, 0, len(s.winners))
	for _, w := range s.winners {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber > out[j].RoundNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type raffleProcess struct {
	svc   *raffleservice.RaffleService
	coord *vrfservice.Coordinator
}

// boot starts a raffle and a fresh in-process coordinator against store, as
// the service binary does on every start.
func boot(t *testing.T, store *storeRepo, treasury *raffletreasury.Memory, clock *stepClock) raffleProcess {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	coord := vrfservice.NewCoordinator(vrfservice.Config{}, nil, logger, nil)
	subID, err := coord.Provision(ctx, vrfservice.ProvisionConfig{Owner: "deployer", Consumer: "raffle"})
	require.NoError(t, err)

	client := NewVRFClient(coord, "raffle")
	svc, err := raffleservice.NewRaffleService(raffledomain.Config{
		EntranceFee:          big.NewInt(10),
		Interval:             time.Minute,
		GasLane:              "0xlane",
		SubscriptionID:       subID,
		CallbackGasLimit:     500000,
		RequestConfirmations: 3,
		NumWords:             1,
	}, store, client, treasury, nil, clock, logger, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Restore(ctx))
	client.Bind(svc)
	require.NoError(t, client.Recover(ctx))

	return raffleProcess{svc: svc, coord: coord}
}

func (p raffleProcess) lockRound(t *testing.T, clock *stepClock, accounts ...raffledomain.Account) uint64 {
	t.Helper()
	ctx := context.Background()
	for _, a := range accounts {
		res, err := p.svc.Enter(ctx, a, big.NewInt(10))
		require.NoError(t, err)
		require.True(t, res.IsSuccess())
	}
	clock.Advance(2 * time.Minute)

	res, err := p.svc.PerformUpkeep(ctx)
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	requests := p.coord.PendingRequests(ctx)
	require.Len(t, requests, 1)
	return requests[0].ID
}

func TestVRFClient_RoundsAcrossRestartUseFreshRequestIDs(t *testing.T) {
	ctx := context.Background()
	store := newStoreRepo()
	treasury := raffletreasury.NewMemory()
	clock := &stepClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}

	first := boot(t, store, treasury, clock)
	id := first.lockRound(t, clock, "A", "B")
	res, err := first.coord.FulfillRandomWords(ctx, id, "raffle")
	require.NoError(t, err)
	require.True(t, res.Success, "round 1 payout: %v", res.Err)

	second := boot(t, store, treasury, clock)
	assert.Equal(t, uint64(2), second.svc.Snapshot(ctx).RoundNumber)

	next := second.lockRound(t, clock, "C")
	assert.Greater(t, next, id)

	res, err = second.coord.FulfillRandomWords(ctx, next, "raffle")
	require.NoError(t, err)
	require.True(t, res.Success, "round 2 payout: %v", res.Err)

	snap := second.svc.Snapshot(ctx)
	assert.Equal(t, uint64(3), snap.RoundNumber)
	assert.Equal(t, raffledomain.StateOpen, snap.State)
	assert.Equal(t, raffledomain.Account("C"), snap.RecentWinner)

	winners, err := second.svc.ListWinners(ctx, 10)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.NotEqual(t, winners[0].RequestID, winners[1].RequestID)

	balance, err := treasury.Balance(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, "10", balance.String())
}

func TestVRFClient_RestartWhileCalculatingCanBeFulfilled(t *testing.T) {
	ctx := context.Background()
	store := newStoreRepo()
	treasury := raffletreasury.NewMemory()
	clock := &stepClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}

	first := boot(t, store, treasury, clock)
	id := first.lockRound(t, clock, "A", "B", "C", "D")

	second := boot(t, store, treasury, clock)
	snap := second.svc.Snapshot(ctx)
	require.Equal(t, raffledomain.StateCalculating, snap.State)

	pending := second.coord.PendingRequests(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, "0xlane", pending[0].Params.KeyHash)

	res, err := second.coord.FulfillRandomWordsWithOverride(ctx, id, "raffle", []*big.Int{big.NewInt(17)})
	require.NoError(t, err)
	require.True(t, res.Success, "payout: %v", res.Err)

	snap = second.svc.Snapshot(ctx)
	assert.Equal(t, raffledomain.StateOpen, snap.State)
	assert.Equal(t, uint64(2), snap.RoundNumber)
	assert.Equal(t, raffledomain.Account("B"), snap.RecentWinner)

	balance, err := treasury.Balance(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, "40", balance.String())

	next := second.lockRound(t, clock, "E")
	assert.Greater(t, next, id)
}

func TestVRFClient_RecoverRejectsForeignRequest(t *testing.T) {
	ctx := context.Background()
	store := newStoreRepo()
	round := raffledomain.NewRound(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, round.Enter(big.NewInt(10), "A", big.NewInt(10)))
	round.BeginCalculation("0b6e9a7c-bus-request", round.OpenedAt)
	require.NoError(t, store.SaveRound(ctx, nil, round))

	coord := vrfservice.NewCoordinator(vrfservice.Config{}, nil, nil, nil)
	client := NewVRFClient(coord, "raffle")
	svc := &stubRecoverService{snap: round.Snapshot()}
	client.Bind(svc)

	assert.Error(t, client.Recover(ctx))
	assert.Empty(t, coord.PendingRequests(ctx))
}

type stubRecoverService struct {
	raffleservice.Service
	snap raffledomain.Snapshot
}

func (s *stubRecoverService) Snapshot(ctx context.Context) raffledomain.Snapshot { return s.snap }

func (s *stubRecoverService) ListWinners(ctx context.Context, limit int) ([]raffledomain.Winner, error) {
	return nil, nil
}
