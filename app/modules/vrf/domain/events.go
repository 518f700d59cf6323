package vrfdomain

import "time"

const (
	RandomWordsRequestedV1      = "vrf.random_words.requested.v1"
	RandomWordsFulfilledV1      = "vrf.random_words.fulfilled.v1"
	FulfillRequestedV1          = "vrf.fulfill.requested.v1"
	FulfillFailedV1             = "vrf.fulfill.failed.v1"
	SubscriptionFundRequestedV1 = "vrf.subscription.fund.requested.v1"
	SubscriptionFundedV1        = "vrf.subscription.funded.v1"
	SubscriptionFundFailedV1    = "vrf.subscription.fund.failed.v1"
	StreamName                  = "vrf"
	StreamSubjectsWildcard      = "vrf.>"
)

type RandomWordsRequestedPayloadV1 struct {
	RequestID            string    `json:"request_id"`
	Consumer             string    `json:"consumer"`
	KeyHash              string    `json:"key_hash"`
	SubscriptionID       uint64    `json:"subscription_id"`
	RequestConfirmations uint16    `json:"request_confirmations"`
	CallbackGasLimit     uint32    `json:"callback_gas_limit"`
	NumWords             uint32    `json:"num_words"`
	RequestedAt          time.Time `json:"requested_at"`
}

// RandomWordsFulfilledPayloadV1 carries random words as base-10 strings.
type RandomWordsFulfilledPayloadV1 struct {
	RequestID string   `json:"request_id"`
	Consumer  string   `json:"consumer"`
	Words     []string `json:"words"`
	Payment   string   `json:"payment,omitempty"`
	Success   bool     `json:"success"`
}

// FulfillRequestedPayloadV1 asks the coordinator to answer a pending request.
// Words, when set, override the derived values.
type FulfillRequestedPayloadV1 struct {
	RequestID string   `json:"request_id"`
	Consumer  string   `json:"consumer"`
	Words     []string `json:"words,omitempty"`
}

type FulfillFailedPayloadV1 struct {
	RequestID string `json:"request_id"`
	Consumer  string `json:"consumer"`
	Reason    string `json:"reason"`
}

type SubscriptionFundRequestedPayloadV1 struct {
	SubscriptionID uint64 `json:"subscription_id"`
	Amount         string `json:"amount"`
}

type SubscriptionFundedPayloadV1 struct {
	SubscriptionID uint64 `json:"subscription_id"`
	OldBalance     string `json:"old_balance"`
	NewBalance     string `json:"new_balance"`
}

type SubscriptionFundFailedPayloadV1 struct {
	SubscriptionID uint64 `json:"subscription_id"`
	Reason         string `json:"reason"`
}
