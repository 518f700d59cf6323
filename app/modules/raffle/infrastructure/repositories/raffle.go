package raffledb

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

// ErrNotFound is returned when no round has been persisted yet.
var ErrNotFound = errors.New("raffle round not found")

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new raffle repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) LoadCurrentRound(ctx context.Context, db bun.IDB) (*raffledomain.Round, error) {
	db = r.resolveDB(db)

	rec := new(RoundRecord)
	err := db.NewSelect().
		Model(rec).
		OrderExpr("number DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load current round: %w", err)
	}

	var entries []EntryRecord
	err = db.NewSelect().
		Model(&entries).
		Where("round_number = ?", rec.Number).
		OrderExpr("slot ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for round %d: %w", rec.Number, err)
	}

	return toDomainRound(rec, entries)
}

func (r *Impl) SaveRound(ctx context.Context, db bun.IDB, round *raffledomain.Round) error {
	db = r.resolveDB(db)
	rec := toRoundRecord(round)
	rec.UpdatedAt = time.Now().UTC()

	_, err := db.NewInsert().
		Model(rec).
		On("CONFLICT (number) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("pool = EXCLUDED.pool").
		Set("opened_at = EXCLUDED.opened_at").
		Set("pending_request_id = EXCLUDED.pending_request_id").
		Set("requested_at = EXCLUDED.requested_at").
		Set("random_words = EXCLUDED.random_words").
		Set("recent_winner = EXCLUDED.recent_winner").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save round %d: %w", round.Number, err)
	}
	return nil
}

func (r *Impl) AppendEntry(ctx context.Context, db bun.IDB, entry *EntryRecord) error {
	db = r.resolveDB(db)
	if _, err := db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return fmt.Errorf("failed to append entry %d to round %d: %w", entry.Slot, entry.RoundNumber, err)
	}
	return nil
}

func (r *Impl) RecordWinner(ctx context.Context, db bun.IDB, winner raffledomain.Winner) error {
	db = r.resolveDB(db)
	rec := &WinnerRecord{
		RoundNumber: winner.RoundNumber,
		RequestID:   string(winner.RequestID),
		Winner:      string(winner.Winner),
		WinnerIndex: winner.WinnerIndex,
		Amount:      amountString(winner.Amount),
		RandomWord:  amountString(winner.RandomWord),
		Players:     winner.Players,
		PickedAt:    winner.PickedAt,
	}
	if _, err := db.NewInsert().Model(rec).On("CONFLICT (round_number) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("failed to record winner of round %d: %w", winner.RoundNumber, err)
	}
	return nil
}

func (r *Impl) ListWinners(ctx context.Context, db bun.IDB, limit int) ([]raffledomain.Winner, error) {
	db = r.resolveDB(db)

	var recs []WinnerRecord
	q := db.NewSelect().Model(&recs).OrderExpr("round_number DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}

	out := make([]raffledomain.Winner, 0, len(recs))
	for _, rec := range recs {
		amount, err := raffledomain.ParseAmount(rec.Amount)
		if err != nil {
			return nil, fmt.Errorf("winner of round %d: %w", rec.RoundNumber, err)
		}
		word, err := raffledomain.ParseAmount(rec.RandomWord)
		if err != nil {
			return nil, fmt.Errorf("winner of round %d: %w", rec.RoundNumber, err)
		}
		out = append(out, raffledomain.Winner{
			RoundNumber: rec.RoundNumber,
			RequestID:   raffledomain.RequestID(rec.RequestID),
			Winner:      raffledomain.Account(rec.Winner),
			WinnerIndex: rec.WinnerIndex,
			Amount:      amount,
			RandomWord:  word,
			Players:     rec.Players,
			PickedAt:    rec.PickedAt,
		})
	}
	return out, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func toRoundRecord(round *raffledomain.Round) *RoundRecord {
	rec := &RoundRecord{
		Number:           round.Number,
		State:            round.State.String(),
		Pool:             amountString(round.Pool),
		OpenedAt:         round.OpenedAt,
		PendingRequestID: string(round.PendingRequestID),
		RecentWinner:     string(round.RecentWinner),
	}
	if !round.RequestedAt.IsZero() {
		t := round.RequestedAt
		rec.RequestedAt = &t
	}
	for _, w := range round.RandomWords {
		rec.RandomWords = append(rec.RandomWords, w.String())
	}
	return rec
}

func toDomainRound(rec *RoundRecord, entries []EntryRecord) (*raffledomain.Round, error) {
	state, err := raffledomain.ParseState(rec.State)
	if err != nil {
		return nil, err
	}
	pool, err := raffledomain.ParseAmount(rec.Pool)
	if err != nil {
		return nil, fmt.Errorf("round %d pool: %w", rec.Number, err)
	}

	round := &raffledomain.Round{
		Number:           rec.Number,
		Pool:             pool,
		OpenedAt:         rec.OpenedAt,
		State:            state,
		PendingRequestID: raffledomain.RequestID(rec.PendingRequestID),
		RecentWinner:     raffledomain.Account(rec.RecentWinner),
	}
	if rec.RequestedAt != nil {
		round.RequestedAt = *rec.RequestedAt
	}
	for _, e := range entries {
		round.Entrants = append(round.Entrants, raffledomain.Account(e.Account))
	}
	for _, s := range rec.RandomWords {
		w, err := raffledomain.ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("round %d random word: %w", rec.Number, err)
		}
		round.RandomWords = append(round.RandomWords, w)
	}
	return round, nil
}
