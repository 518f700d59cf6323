package raffledomain

import (
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"
)

// Account identifies a participant. It is treated as an opaque string.
type Account string

// MaxAccountLength is the longest account, in characters, that can be stored.
const MaxAccountLength = 128

// Valid reports whether a can be stored: non-empty UTF-8 text of at most
// MaxAccountLength characters without NUL bytes.
func (a Account) Valid() bool {
	s := string(a)
	return s != "" &&
		utf8.ValidString(s) &&
		!strings.ContainsRune(s, 0) &&
		utf8.RuneCountInString(s) <= MaxAccountLength
}

// RequestID correlates a randomness request with its fulfillment.
type RequestID string

// State is the lifecycle state of a round.
type State int

const (
	StateOpen State = iota
	StateCalculating
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCalculating:
		return "CALCULATING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	switch strings.ToUpper(s) {
	case "OPEN":
		return StateOpen, nil
	case "CALCULATING":
		return StateCalculating, nil
	default:
		return 0, fmt.Errorf("unknown raffle state %q", s)
	}
}

// Config is fixed for the lifetime of a deployment.
type Config struct {
	EntranceFee *big.Int
	Interval    time.Duration

	// Oracle request parameters, passed through untouched.
	GasLane              string
	SubscriptionID       uint64
	CallbackGasLimit     uint32
	RequestConfirmations uint16
	NumWords             uint32
}

func (c Config) Validate() error {
	if c.EntranceFee == nil || c.EntranceFee.Sign() <= 0 {
		return fmt.Errorf("entrance fee must be positive")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.NumWords == 0 {
		return fmt.Errorf("num words must be at least 1")
	}
	return nil
}

// OracleRequest returns the parameters of a randomness request.
func (c Config) OracleRequest() OracleRequest {
	return OracleRequest{
		KeyHash:              c.GasLane,
		SubscriptionID:       c.SubscriptionID,
		RequestConfirmations: c.RequestConfirmations,
		CallbackGasLimit:     c.CallbackGasLimit,
		NumWords:             c.NumWords,
	}
}

// OracleRequest is opaque to the raffle and interpreted by the oracle.
type OracleRequest struct {
	KeyHash              string
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
}

// ParseAmount parses a non-negative base-10 integer amount.
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	return v, nil
}
