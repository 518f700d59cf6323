package vrfdomain

import (
	"math/big"
	"slices"
	"time"
)

const (
	MaxConsumers = 100
	MaxNumWords  = 500
)

// Subscription pays for the requests of its consumers.
type Subscription struct {
	ID           uint64
	Owner        string
	Balance      *big.Int
	RequestCount uint64
	Consumers    []string
}

func (s *Subscription) Clone() Subscription {
	c := *s
	c.Balance = new(big.Int).Set(s.Balance)
	c.Consumers = slices.Clone(s.Consumers)
	return c
}

func (s *Subscription) HasConsumer(consumer string) bool {
	return slices.Contains(s.Consumers, consumer)
}

// RandomWordsRequest is what a consumer asks the coordinator for.
type RandomWordsRequest struct {
	KeyHash              string
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
}

// Request is an accepted, not yet fulfilled request.
type Request struct {
	ID          uint64
	Consumer    string
	Params      RandomWordsRequest
	RequestedAt time.Time
}

// Fulfillment is the outcome of delivering words to a consumer.
type Fulfillment struct {
	RequestID uint64
	Consumer  string
	Words     []*big.Int
	Payment   *big.Int
	Success   bool
	Err       error
}
