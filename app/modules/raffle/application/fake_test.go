package raffleservice

import (
	"context"
	"strconv"
	"sync"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Raffle Repo
// ------------------------

type FakeRaffleRepo struct {
	mu    sync.Mutex
	trace []string

	LoadCurrentRoundFunc func(ctx context.Context, db bun.IDB) (*raffledomain.Round, error)
	SaveRoundFunc        func(ctx context.Context, db bun.IDB, round *raffledomain.Round) error
	AppendEntryFunc      func(ctx context.Context, db bun.IDB, entry *raffledb.EntryRecord) error
	RecordWinnerFunc     func(ctx context.Context, db bun.IDB, winner raffledomain.Winner) error
	ListWinnersFunc      func(ctx context.Context, db bun.IDB, limit int) ([]raffledomain.Winner, error)
}

func NewFakeRaffleRepo() *FakeRaffleRepo {
	return &FakeRaffleRepo{trace: []string{}}
}

func (f *FakeRaffleRepo) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *FakeRaffleRepo) LoadCurrentRound(ctx context.Context, db bun.IDB) (*raffledomain.Round, error) {
	f.record("LoadCurrentRound")
	if f.LoadCurrentRoundFunc != nil {
		return f.LoadCurrentRoundFunc(ctx, db)
	}
	return nil, raffledb.ErrNotFound
}

func (f *FakeRaffleRepo) SaveRound(ctx context.Context, db bun.IDB, round *raffledomain.Round) error {
	f.record("SaveRound")
	if f.SaveRoundFunc != nil {
		return f.SaveRoundFunc(ctx, db, round)
	}
	return nil
}

func (f *FakeRaffleRepo) AppendEntry(ctx context.Context, db bun.IDB, entry *raffledb.EntryRecord) error {
	f.record("AppendEntry")
	if f.AppendEntryFunc != nil {
		return f.AppendEntryFunc(ctx, db, entry)
	}
	return nil
}

func (f *FakeRaffleRepo) RecordWinner(ctx context.Context, db bun.IDB, winner raffledomain.Winner) error {
	f.record("RecordWinner")
	if f.RecordWinnerFunc != nil {
		return f.RecordWinnerFunc(ctx, db, winner)
	}
	return nil
}

func (f *FakeRaffleRepo) ListWinners(ctx context.Context, db bun.IDB, limit int) ([]raffledomain.Winner, error) {
	f.record("ListWinners")
	if f.ListWinnersFunc != nil {
		return f.ListWinnersFunc(ctx, db, limit)
	}
	return nil, nil
}

func (f *FakeRaffleRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ raffledb.Repository = (*FakeRaffleRepo)(nil)

// ------------------------
// Fake Oracle
// ------------------------

type FakeOracle struct {
	mu       sync.Mutex
	nextID   uint64
	requests []raffledomain.OracleRequest

	RequestRandomWordsFunc func(ctx context.Context, req raffledomain.OracleRequest) (raffledomain.RequestID, error)
}

func (f *FakeOracle) RequestRandomWords(ctx context.Context, req raffledomain.OracleRequest) (raffledomain.RequestID, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.RequestRandomWordsFunc != nil {
		return f.RequestRandomWordsFunc(ctx, req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return raffledomain.RequestID(strconv.FormatUint(f.nextID, 10)), nil
}

func (f *FakeOracle) Requests() []raffledomain.OracleRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]raffledomain.OracleRequest(nil), f.requests...)
}

var _ OracleClient = (*FakeOracle)(nil)

// ------------------------
// Fake Treasury
// ------------------------

type FakeTreasury struct {
	mu        sync.Mutex
	transfers []raffledomain.Transfer

	TransferFunc func(ctx context.Context, transfer raffledomain.Transfer) error
}

func (f *FakeTreasury) Transfer(ctx context.Context, transfer raffledomain.Transfer) error {
	if f.TransferFunc != nil {
		if err := f.TransferFunc(ctx, transfer); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, transfer)
	return nil
}

func (f *FakeTreasury) Transfers() []raffledomain.Transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]raffledomain.Transfer(nil), f.transfers...)
}

var _ Treasury = (*FakeTreasury)(nil)

// ------------------------
// Fake Clock
// ------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
