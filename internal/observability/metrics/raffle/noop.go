package rafflemetrics

import (
	"context"
	"math/big"
	"time"
)

type noop struct{}

// NewNoop returns metrics that discard everything.
func NewNoop() RaffleMetrics {
	return noop{}
}

func (noop) RecordOperationAttempt(context.Context, string, string)                 {}
func (noop) RecordOperationSuccess(context.Context, string, string)                 {}
func (noop) RecordOperationFailure(context.Context, string, string)                 {}
func (noop) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (noop) RecordHandlerAttempt(context.Context, string)                           {}
func (noop) RecordHandlerSuccess(context.Context, string)                           {}
func (noop) RecordHandlerFailure(context.Context, string)                           {}
func (noop) RecordHandlerDuration(context.Context, string, time.Duration)           {}
func (noop) RecordEntry(context.Context)                                            {}
func (noop) SetRoundState(context.Context, int, *big.Int, bool)                     {}
func (noop) RecordPayout(context.Context, *big.Int)                                 {}
func (noop) RecordPayoutFailure(context.Context)                                    {}
