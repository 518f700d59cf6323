package raffledomain

import "time"

// Inbound commands.
const (
	EnterRequestedV1       = "raffle.enter.requested.v1"
	UpkeepRequestedV1      = "raffle.upkeep.requested.v1"
	PayoutRetryRequestedV1 = "raffle.payout.retry.requested.v1"
)

// Outbound events.
const (
	EnteredV1              = "raffle.entered.v1"
	EnterFailedV1          = "raffle.enter.failed.v1"
	RoundRequestedV1       = "raffle.round.requested.v1"
	UpkeepSkippedV1        = "raffle.upkeep.skipped.v1"
	WinnerPickedV1         = "raffle.winner.picked.v1"
	PayoutFailedV1         = "raffle.payout.failed.v1"
	FulfillmentRejectedV1  = "raffle.fulfillment.rejected.v1"
	PayoutRetryFailedV1    = "raffle.payout.retry.failed.v1"
	StreamName             = "raffle"
	StreamSubjectsWildcard = "raffle.>"
)

// EnterRequestedPayloadV1 asks to enter Account paying Value base units.
type EnterRequestedPayloadV1 struct {
	Account string `json:"account"`
	Value   string `json:"value"`
}

type EnteredPayloadV1 struct {
	RoundNumber uint64    `json:"round_number"`
	Account     string    `json:"account"`
	Value       string    `json:"value"`
	Slot        int       `json:"slot"`
	Pool        string    `json:"pool"`
	EnteredAt   time.Time `json:"entered_at"`
}

type EnterFailedPayloadV1 struct {
	Account string `json:"account"`
	Value   string `json:"value"`
	Reason  string `json:"reason"`
}

type UpkeepRequestedPayloadV1 struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

type UpkeepSkippedPayloadV1 struct {
	Reason  string `json:"reason"`
	Players int    `json:"players"`
	Pool    string `json:"pool"`
	State   string `json:"state"`
}

type RoundRequestedPayloadV1 struct {
	RoundNumber uint64    `json:"round_number"`
	RequestID   string    `json:"request_id"`
	Players     int       `json:"players"`
	Pool        string    `json:"pool"`
	RequestedAt time.Time `json:"requested_at"`
}

type WinnerPickedPayloadV1 struct {
	RoundNumber uint64    `json:"round_number"`
	RequestID   string    `json:"request_id"`
	Winner      string    `json:"winner"`
	WinnerIndex int       `json:"winner_index"`
	Amount      string    `json:"amount"`
	PickedAt    time.Time `json:"picked_at"`
}

type PayoutFailedPayloadV1 struct {
	RoundNumber uint64 `json:"round_number"`
	RequestID   string `json:"request_id"`
	Winner      string `json:"winner"`
	Amount      string `json:"amount"`
	Reason      string `json:"reason"`
}

type FulfillmentRejectedPayloadV1 struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
}

type PayoutRetryRequestedPayloadV1 struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

type PayoutRetryFailedPayloadV1 struct {
	Reason string `json:"reason"`
}
