package rafflemetrics

import (
	"context"
	"math/big"
	"time"
)

// RaffleMetrics records service, handler and round level measurements.
type RaffleMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)

	RecordHandlerAttempt(ctx context.Context, handlerName string)
	RecordHandlerSuccess(ctx context.Context, handlerName string)
	RecordHandlerFailure(ctx context.Context, handlerName string)
	RecordHandlerDuration(ctx context.Context, handlerName string, duration time.Duration)

	// RecordEntry counts one accepted entrant slot.
	RecordEntry(ctx context.Context)
	// SetRoundState publishes the live size of the current round.
	SetRoundState(ctx context.Context, players int, pool *big.Int, calculating bool)
	RecordPayout(ctx context.Context, amount *big.Int)
	RecordPayoutFailure(ctx context.Context)
}
