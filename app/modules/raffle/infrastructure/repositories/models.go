package raffledb

import (
	"time"

	"github.com/uptrace/bun"
)

// RoundRecord is the persisted form of one round. Amounts are stored as
// base-10 strings in numeric(78,0) columns.
type RoundRecord struct {
	bun.BaseModel `bun:"table:raffle_rounds,alias:rr"`

	Number           uint64     `bun:"number,pk"`
	State            string     `bun:"state,notnull,type:varchar(16)"`
	Pool             string     `bun:"pool,notnull,type:numeric(78,0)"`
	OpenedAt         time.Time  `bun:"opened_at,notnull"`
	PendingRequestID string     `bun:"pending_request_id,nullzero,type:varchar(128)"`
	RequestedAt      *time.Time `bun:"requested_at,nullzero"`
	RandomWords      []string   `bun:"random_words,type:jsonb"`
	RecentWinner     string     `bun:"recent_winner,nullzero,type:varchar(128)"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// EntryRecord is one entrant slot.
type EntryRecord struct {
	bun.BaseModel `bun:"table:raffle_entries,alias:re"`

	RoundNumber uint64    `bun:"round_number,pk"`
	Slot        int       `bun:"slot,pk"`
	Account     string    `bun:"account,notnull,type:varchar(128)"`
	Value       string    `bun:"value,notnull,type:numeric(78,0)"`
	EnteredAt   time.Time `bun:"entered_at,notnull"`
}

// WinnerRecord is the history row written on every successful payout.
type WinnerRecord struct {
	bun.BaseModel `bun:"table:raffle_winners,alias:rw"`

	RoundNumber uint64    `bun:"round_number,pk"`
	RequestID   string    `bun:"request_id,notnull,type:varchar(128)"`
	Winner      string    `bun:"winner,notnull,type:varchar(128)"`
	WinnerIndex int       `bun:"winner_index,notnull"`
	Amount      string    `bun:"amount,notnull,type:numeric(78,0)"`
	RandomWord  string    `bun:"random_word,notnull,type:numeric(78,0)"`
	Players     int       `bun:"players,notnull"`
	PickedAt    time.Time `bun:"picked_at,notnull"`
}
