package vrfdomain

import "errors"

var (
	ErrNonexistentRequest  = errors.New("nonexistent request")
	ErrInvalidSubscription = errors.New("invalid subscription")
	ErrInsufficientBalance = errors.New("insufficient subscription balance")
	ErrInvalidConsumer     = errors.New("invalid consumer")
	ErrTooManyConsumers    = errors.New("too many consumers")
	ErrNumWordsTooLarge    = errors.New("num words too large")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrWordCountMismatch   = errors.New("override word count does not match request")
)
