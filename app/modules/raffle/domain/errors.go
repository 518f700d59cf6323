package raffledomain

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrInsufficientFee is returned when an entry pays less than the entrance fee.
	ErrInsufficientFee = errors.New("insufficient entrance fee")
	// ErrRoundNotOpen is returned when entering while a winner is being calculated.
	ErrRoundNotOpen = errors.New("raffle round is not open")
	// ErrUpkeepNotNeeded is returned when a round is triggered before its preconditions hold.
	ErrUpkeepNotNeeded = errors.New("upkeep not needed")
	// ErrUnknownRequest is returned for fulfillments that do not match the pending request.
	ErrUnknownRequest = errors.New("unknown randomness request")
	// ErrPayoutFailed is returned when the transfer sink rejects the payout.
	ErrPayoutFailed = errors.New("payout failed")

	ErrInvalidAccount        = errors.New("invalid account")
	ErrNoRandomWords         = errors.New("fulfillment carries no random words")
	ErrPlayerIndexOutOfRange = errors.New("player index out of range")
	ErrNothingToRetry        = errors.New("no payout awaiting retry")
)

// UpkeepError explains why a round could not be triggered.
type UpkeepError struct {
	Reason  UpkeepReason
	Pool    *big.Int
	Players int
	State   State
}

func (e *UpkeepError) Error() string {
	return fmt.Sprintf("%s: %s (pool=%s players=%d state=%s)",
		ErrUpkeepNotNeeded, e.Reason, e.Pool, e.Players, e.State)
}

func (e *UpkeepError) Unwrap() error { return ErrUpkeepNotNeeded }

// PayoutError carries the transfer that the sink rejected.
type PayoutError struct {
	RequestID RequestID
	Winner    Account
	Amount    *big.Int
	Err       error
}

func (e *PayoutError) Error() string {
	return fmt.Sprintf("%s: %s to %s for request %s: %v",
		ErrPayoutFailed, e.Amount, e.Winner, e.RequestID, e.Err)
}

func (e *PayoutError) Unwrap() []error { return []error{ErrPayoutFailed, e.Err} }
