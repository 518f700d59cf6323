package raffledb

import (
	"context"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/uptrace/bun"
)

// Repository defines the contract for raffle persistence.
type Repository interface {
	// LoadCurrentRound returns the highest numbered round with its entrants.
	// It returns ErrNotFound on an empty database.
	LoadCurrentRound(ctx context.Context, db bun.IDB) (*raffledomain.Round, error)

	// SaveRound upserts the round header.
	SaveRound(ctx context.Context, db bun.IDB, round *raffledomain.Round) error

	// AppendEntry stores one entrant slot.
	AppendEntry(ctx context.Context, db bun.IDB, entry *EntryRecord) error

	// RecordWinner stores the outcome of a completed round.
	RecordWinner(ctx context.Context, db bun.IDB, winner raffledomain.Winner) error

	// ListWinners returns the newest winners first.
	ListWinners(ctx context.Context, db bun.IDB, limit int) ([]raffledomain.Winner, error)
}
