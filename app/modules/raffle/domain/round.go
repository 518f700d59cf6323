package raffledomain

import (
	"math/big"
	"slices"
	"time"
)

// Round is the unit of play. It is reset in place after every payout.
// Callers must serialize mutations; Round itself holds no lock.
type Round struct {
	Number   uint64
	Entrants []Account
	Pool     *big.Int
	OpenedAt time.Time
	State    State

	// PendingRequestID is set iff State == StateCalculating.
	PendingRequestID RequestID
	RequestedAt      time.Time
	// RandomWords holds the first fulfillment delivered for PendingRequestID,
	// kept so a failed payout is retried with the same winner.
	RandomWords []*big.Int

	RecentWinner Account
}

// NewRound opens round number 1 at now.
func NewRound(now time.Time) *Round {
	return &Round{
		Number:   1,
		Pool:     new(big.Int),
		OpenedAt: now,
		State:    StateOpen,
	}
}

// Clone returns a deep copy.
func (r *Round) Clone() *Round {
	c := *r
	c.Entrants = slices.Clone(r.Entrants)
	c.Pool = new(big.Int).Set(r.poolOrZero())
	if r.RandomWords != nil {
		c.RandomWords = make([]*big.Int, len(r.RandomWords))
		for i, w := range r.RandomWords {
			c.RandomWords[i] = new(big.Int).Set(w)
		}
	}
	return &c
}

func (r *Round) poolOrZero() *big.Int {
	if r.Pool == nil {
		return new(big.Int)
	}
	return r.Pool
}

// Enter appends account with value. The round is unchanged on error.
func (r *Round) Enter(entranceFee *big.Int, account Account, value *big.Int) error {
	if !account.Valid() {
		return ErrInvalidAccount
	}
	if value == nil || value.Cmp(entranceFee) < 0 {
		return ErrInsufficientFee
	}
	if r.State != StateOpen {
		return ErrRoundNotOpen
	}
	r.Entrants = append(r.Entrants, account)
	r.Pool = new(big.Int).Add(r.poolOrZero(), value)
	return nil
}

// UpkeepReason names the first failing trigger precondition.
type UpkeepReason string

const (
	UpkeepEligible           UpkeepReason = "eligible"
	UpkeepNotOpen            UpkeepReason = "not_open"
	UpkeepIntervalNotElapsed UpkeepReason = "interval_not_elapsed"
	UpkeepNoPlayers          UpkeepReason = "no_players"
	UpkeepNoBalance          UpkeepReason = "no_balance"
)

// UpkeepStatus is the outcome of CheckUpkeep.
type UpkeepStatus struct {
	Eligible bool
	Reason   UpkeepReason
	Elapsed  time.Duration
	Players  int
	Pool     *big.Int
	State    State
}

// Err returns an *UpkeepError when the status is not eligible.
func (s UpkeepStatus) Err() error {
	if s.Eligible {
		return nil
	}
	return &UpkeepError{Reason: s.Reason, Pool: s.Pool, Players: s.Players, State: s.State}
}

// CheckUpkeep evaluates the trigger preconditions at now. It never mutates r.
func (r *Round) CheckUpkeep(now time.Time, interval time.Duration) UpkeepStatus {
	pool := new(big.Int).Set(r.poolOrZero())
	status := UpkeepStatus{
		Elapsed: now.Sub(r.OpenedAt),
		Players: len(r.Entrants),
		Pool:    pool,
		State:   r.State,
	}

	switch {
	case r.State != StateOpen:
		status.Reason = UpkeepNotOpen
	case status.Elapsed < interval:
		status.Reason = UpkeepIntervalNotElapsed
	case len(r.Entrants) == 0:
		status.Reason = UpkeepNoPlayers
	case pool.Sign() <= 0:
		status.Reason = UpkeepNoBalance
	default:
		status.Eligible = true
		status.Reason = UpkeepEligible
	}
	return status
}

// BeginCalculation locks the round behind requestID.
func (r *Round) BeginCalculation(requestID RequestID, now time.Time) {
	r.State = StateCalculating
	r.PendingRequestID = requestID
	r.RequestedAt = now
	r.RandomWords = nil
}

// AcceptsFulfillment reports whether requestID answers the outstanding request.
func (r *Round) AcceptsFulfillment(requestID RequestID) bool {
	return r.State == StateCalculating && r.PendingRequestID != "" && r.PendingRequestID == requestID
}

// SelectWinner picks entrants[word mod len(entrants)]. The round must have entrants.
func (r *Round) SelectWinner(word *big.Int) (int, Account) {
	n := big.NewInt(int64(len(r.Entrants)))
	idx := new(big.Int).Mod(word, n)
	i := int(idx.Int64())
	return i, r.Entrants[i]
}

// Reset clears the round after a payout to winner and opens the next one.
func (r *Round) Reset(now time.Time, winner Account) {
	r.Number++
	r.Entrants = nil
	r.Pool = new(big.Int)
	r.OpenedAt = now
	r.State = StateOpen
	r.PendingRequestID = ""
	r.RequestedAt = time.Time{}
	r.RandomWords = nil
	r.RecentWinner = winner
}

// Snapshot is a consistent, caller-owned copy of a round.
type Snapshot struct {
	RoundNumber      uint64
	Entrants         []Account
	Pool             *big.Int
	State            State
	OpenedAt         time.Time
	PendingRequestID RequestID
	RecentWinner     Account
}

func (r *Round) Snapshot() Snapshot {
	return Snapshot{
		RoundNumber:      r.Number,
		Entrants:         slices.Clone(r.Entrants),
		Pool:             new(big.Int).Set(r.poolOrZero()),
		State:            r.State,
		OpenedAt:         r.OpenedAt,
		PendingRequestID: r.PendingRequestID,
		RecentWinner:     r.RecentWinner,
	}
}

// Winner is the record of one completed round.
type Winner struct {
	RoundNumber uint64
	RequestID   RequestID
	Winner      Account
	WinnerIndex int
	Amount      *big.Int
	RandomWord  *big.Int
	Players     int
	PickedAt    time.Time
}

// Transfer moves Amount to Recipient. Reference identifies the payout so that
// a sink can deduplicate retries.
type Transfer struct {
	Reference string
	Recipient Account
	Amount    *big.Int
}
