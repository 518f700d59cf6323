package rafflequeue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	"github.com/riverqueue/river"
)

// Upkeeper is the part of the raffle the keeper drives.
type Upkeeper interface {
	CheckUpkeep(ctx context.Context) raffledomain.UpkeepStatus
	PerformUpkeep(ctx context.Context) (raffleservice.UpkeepResult, error)
}

// Fulfiller answers randomness requests.
type Fulfiller interface {
	FulfillRandomWords(ctx context.Context, requestID uint64, consumer string) (vrfdomain.Fulfillment, error)
}

// UpkeepWorker triggers eligible rounds.
type UpkeepWorker struct {
	river.WorkerDefaults[UpkeepJob]
	raffle Upkeeper
	logger *slog.Logger
}

func NewUpkeepWorker(logger *slog.Logger, raffle Upkeeper) *UpkeepWorker {
	return &UpkeepWorker{raffle: raffle, logger: logger}
}

// Work triggers the round once it is eligible. Only oracle and storage
// failures are reported to River.
func (w *UpkeepWorker) Work(ctx context.Context, job *river.Job[UpkeepJob]) error {
	if status := w.raffle.CheckUpkeep(ctx); !status.Eligible {
		w.logger.DebugContext(ctx, "Upkeep not needed",
			attr.Int64("job_id", job.ID),
			attr.String("reason", string(status.Reason)),
		)
		return nil
	}

	result, err := w.raffle.PerformUpkeep(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Upkeep job failed",
			attr.Int64("job_id", job.ID),
			attr.Int("attempt", job.Attempt),
			attr.Error(err),
		)
		return err
	}
	if result.IsFailure() {
		w.logger.InfoContext(ctx, "Round changed before upkeep",
			attr.Int64("job_id", job.ID),
			attr.Error(*result.Failure),
		)
		return nil
	}
	w.logger.InfoContext(ctx, "Keeper triggered round",
		attr.Int64("job_id", job.ID),
		attr.RoundNumber(result.Success.RoundNumber),
		attr.RequestID(string(result.Success.RequestID)),
		attr.String("requested_by", job.Args.RequestedBy),
	)
	return nil
}

func (w *UpkeepWorker) Timeout(*river.Job[UpkeepJob]) time.Duration { return 30 * time.Second }

// FulfillmentWorker plays the oracle node for the local coordinator.
type FulfillmentWorker struct {
	river.WorkerDefaults[FulfillmentJob]
	coordinator Fulfiller
	logger      *slog.Logger
}

func NewFulfillmentWorker(logger *slog.Logger, coordinator Fulfiller) *FulfillmentWorker {
	return &FulfillmentWorker{coordinator: coordinator, logger: logger}
}

// Work fulfills the request. Requests that no longer exist were answered by
// someone else and the job is cancelled. A subscription that cannot pay is
// retried so that funding it later unblocks the round.
func (w *FulfillmentWorker) Work(ctx context.Context, job *river.Job[FulfillmentJob]) error {
	res, err := w.coordinator.FulfillRandomWords(ctx, job.Args.RequestID, job.Args.Consumer)
	switch {
	case errors.Is(err, vrfdomain.ErrNonexistentRequest):
		w.logger.InfoContext(ctx, "Randomness request already answered",
			attr.Uint64("request_id", job.Args.RequestID),
			attr.Int64("job_id", job.ID),
		)
		return river.JobCancel(err)
	case errors.Is(err, vrfdomain.ErrInvalidConsumer):
		return river.JobCancel(err)
	case err != nil:
		w.logger.WarnContext(ctx, "Fulfillment attempt failed",
			attr.Uint64("request_id", job.Args.RequestID),
			attr.Int("attempt", job.Attempt),
			attr.Error(err),
		)
		return err
	}

	if !res.Success {
		// The request is consumed either way; the raffle keeps the payout for a retry.
		w.logger.WarnContext(ctx, "Consumer rejected fulfillment",
			attr.Uint64("request_id", job.Args.RequestID),
			attr.String("consumer", job.Args.Consumer),
			attr.Error(res.Err),
		)
		return nil
	}

	w.logger.InfoContext(ctx, "Randomness request fulfilled",
		attr.Uint64("request_id", job.Args.RequestID),
		attr.String("consumer", job.Args.Consumer),
		attr.Amount("payment", res.Payment),
	)
	return nil
}
