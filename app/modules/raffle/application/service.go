package raffleservice

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	rafflemetrics "github.com/Black-And-White-Club/frolf-raffle/internal/observability/metrics/raffle"
	"github.com/Black-And-White-Club/frolf-raffle/internal/results"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "RaffleService"

// RaffleService implements the Service interface.
//
// mu guards round. Writers clone the round, persist the clone and swap it in
// only after the transaction commits, so readers never observe partial writes.
type RaffleService struct {
	mu    sync.RWMutex
	round *raffledomain.Round

	cfg       raffledomain.Config
	repo      raffledb.Repository
	oracle    OracleClient
	treasury  Treasury
	publisher message.Publisher
	clock     Clock
	logger    *slog.Logger
	metrics   rafflemetrics.RaffleMetrics
	tracer    trace.Tracer
	db        *bun.DB
}

// NewRaffleService creates a RaffleService with a fresh round opened now.
// Call Restore to resume persisted state.
func NewRaffleService(
	cfg raffledomain.Config,
	repo raffledb.Repository,
	oracle OracleClient,
	treasury Treasury,
	publisher message.Publisher,
	clock Clock,
	logger *slog.Logger,
	metrics rafflemetrics.RaffleMetrics,
	tracer trace.Tracer,
	db *bun.DB,
) (*RaffleService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid raffle config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RaffleService{
		round:     raffledomain.NewRound(clock.Now()),
		cfg:       cfg,
		repo:      repo,
		oracle:    oracle,
		treasury:  treasury,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
	}, nil
}

// publish emits an observable event. Events are informational, so a failed
// publish is logged and never rolls back committed state.
func (s *RaffleService) publish(ctx context.Context, topic string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := eventbus.PublishJSON(ctx, s.publisher, topic, payload); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish raffle event",
			attr.ExtractCorrelationID(ctx),
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}

// observeRound reports the current round gauges. Callers hold mu.
func (s *RaffleService) observeRound(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	s.metrics.SetRoundState(ctx, len(s.round.Entrants), s.round.Pool, s.round.State == raffledomain.StateCalculating)
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *RaffleService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
		}
	}()

	s.logger.InfoContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			}
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		}
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		s.logger.InfoContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}

	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *RaffleService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})

	return result, err
}
