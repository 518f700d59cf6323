package rafflequeue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"
)

const metricsService = "river"

// Metrics is the subset of raffle metrics the queue reports to.
type Metrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// QueueService schedules keeper and oracle work.
type QueueService interface {
	// ScheduleFulfillment enqueues an answer for a pending randomness request.
	ScheduleFulfillment(ctx context.Context, requestID uint64, consumer string) error
	// TriggerUpkeep enqueues an immediate keeper run.
	TriggerUpkeep(ctx context.Context, requestedBy string) error
	// GetScheduledJobs lists raffle jobs of kind, or all raffle jobs when kind is empty.
	GetScheduledJobs(ctx context.Context, kind string) ([]JobInfo, error)
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Options tunes the keeper and the local oracle.
type Options struct {
	// KeeperInterval is how often the keeper checks the round. Zero disables
	// the periodic keeper.
	KeeperInterval time.Duration
	// FulfillDelay postpones fulfillments, standing in for block confirmations.
	FulfillDelay time.Duration
	// MaxFulfillAttempts bounds retries while a subscription is underfunded.
	MaxFulfillAttempts int
}

// Service handles raffle job scheduling using River.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	db      *bun.DB
	metrics Metrics
	opts    Options
}

// NewService creates a River-based queue service. fulfiller may be nil when
// randomness comes from an external oracle.
func NewService(
	ctx context.Context,
	bunDB *bun.DB,
	logger *slog.Logger,
	dsn string,
	metrics Metrics,
	upkeeper Upkeeper,
	fulfiller Fulfiller,
	opts Options,
) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_raffle_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", metricsService)

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", metricsService)
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", metricsService)
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to ping database for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", metricsService)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewUpkeepWorker(ctxLogger, upkeeper))
	if fulfiller != nil {
		river.AddWorker(workers, NewFulfillmentWorker(ctxLogger, fulfiller))
	}

	var periodic []*river.PeriodicJob
	if opts.KeeperInterval > 0 {
		periodic = append(periodic, river.NewPeriodicJob(
			river.PeriodicInterval(opts.KeeperInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return UpkeepJob{RequestedBy: "keeper"}, &river.InsertOpts{Queue: QueueRaffle, MaxAttempts: 1}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			QueueRaffle:        {MaxWorkers: 5},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
		Logger:       ctxLogger,
	})
	if err != nil {
		pool.Close()
		ctxLogger.Error("Failed to create River client", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", metricsService)
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	if opts.MaxFulfillAttempts <= 0 {
		opts.MaxFulfillAttempts = 10
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", metricsService)
	metrics.RecordOperationDuration(ctx, "initialize_service", metricsService, time.Since(start))

	ctxLogger.Info("Raffle queue service initialized",
		attr.Duration("keeper_interval", opts.KeeperInterval),
		attr.Duration("fulfill_delay", opts.FulfillDelay),
		attr.Bool("local_oracle", fulfiller != nil),
	)
	return &Service{
		client:  riverClient,
		pool:    pool,
		logger:  ctxLogger,
		db:      bunDB,
		metrics: metrics,
		opts:    opts,
	}, nil
}

// Start starts the River client.
func (s *Service) Start(ctx context.Context) error {
	return s.observe(ctx, "start_service", func() error {
		if err := s.client.Start(ctx); err != nil {
			return fmt.Errorf("failed to start River client: %w", err)
		}
		s.logger.Info("Raffle queue service started")
		return nil
	})
}

// Stop waits for running jobs and releases the pool.
func (s *Service) Stop(ctx context.Context) error {
	return s.observe(ctx, "stop_service", func() error {
		defer s.pool.Close()
		if err := s.client.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop River client: %w", err)
		}
		s.logger.Info("Raffle queue service stopped")
		return nil
	})
}

// ScheduleFulfillment implements the coordinator's scheduler hook.
func (s *Service) ScheduleFulfillment(ctx context.Context, requestID uint64, consumer string) error {
	return s.observe(ctx, "schedule_fulfillment", func() error {
		res, err := s.client.Insert(ctx, FulfillmentJob{RequestID: requestID, Consumer: consumer}, &river.InsertOpts{
			Queue:       QueueRaffle,
			ScheduledAt: time.Now().Add(s.opts.FulfillDelay),
			MaxAttempts: s.opts.MaxFulfillAttempts,
			UniqueOpts:  river.UniqueOpts{ByArgs: true},
		})
		if err != nil {
			return fmt.Errorf("failed to schedule fulfillment: %w", err)
		}
		s.logger.InfoContext(ctx, "Fulfillment scheduled",
			attr.Uint64("request_id", requestID),
			attr.String("consumer", consumer),
			attr.Int64("job_id", res.Job.ID),
			attr.Bool("duplicate", res.UniqueSkippedAsDuplicate),
		)
		return nil
	})
}

// TriggerUpkeep enqueues a keeper run outside the periodic schedule.
func (s *Service) TriggerUpkeep(ctx context.Context, requestedBy string) error {
	return s.observe(ctx, "trigger_upkeep", func() error {
		if _, err := s.client.Insert(ctx, UpkeepJob{RequestedBy: requestedBy}, &river.InsertOpts{
			Queue:       QueueRaffle,
			MaxAttempts: 1,
		}); err != nil {
			return fmt.Errorf("failed to enqueue upkeep: %w", err)
		}
		return nil
	})
}

type riverJobRow struct {
	ID          int64      `bun:"id"`
	Kind        string     `bun:"kind"`
	State       string     `bun:"state"`
	ScheduledAt *time.Time `bun:"scheduled_at"`
	CreatedAt   time.Time  `bun:"created_at"`
	Attempt     int16      `bun:"attempt"`
	MaxAttempts int16      `bun:"max_attempts"`
}

// GetScheduledJobs returns raffle jobs for debugging, oldest first.
func (s *Service) GetScheduledJobs(ctx context.Context, kind string) ([]JobInfo, error) {
	var out []JobInfo
	err := s.observe(ctx, "get_scheduled_jobs", func() error {
		q := s.db.NewSelect().
			Table("river_job").
			Column("id", "kind", "state", "scheduled_at", "created_at", "attempt", "max_attempts").
			Order("scheduled_at ASC NULLS LAST", "created_at ASC")
		if kind != "" {
			q = q.Where("kind = ?", kind)
		} else {
			q = q.Where("kind IN (?, ?)", KindUpkeep, KindFulfillment)
		}

		var rows []riverJobRow
		if err := q.Scan(ctx, &rows); err != nil {
			return fmt.Errorf("failed to query scheduled jobs: %w", err)
		}
		out = toJobInfos(rows)
		return nil
	})
	return out, err
}

// HealthCheck verifies the queue tables are reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.observe(ctx, "health_check", func() error {
		if s.client == nil {
			return fmt.Errorf("river client is nil")
		}
		var count int
		if err := s.db.NewSelect().Table("river_job").ColumnExpr("COUNT(*)").Scan(ctx, &count); err != nil {
			return fmt.Errorf("queue service health check failed: %w", err)
		}
		s.logger.Debug("Queue service health check passed", attr.Int("total_jobs", count))
		return nil
	})
}

func (s *Service) observe(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, operation, metricsService)
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operation, metricsService, time.Since(start))
	}()

	if err := fn(); err != nil {
		s.logger.ErrorContext(ctx, "Queue operation failed", attr.String("operation", operation), attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, operation, metricsService)
		return err
	}
	s.metrics.RecordOperationSuccess(ctx, operation, metricsService)
	return nil
}

func toJobInfos(rows []riverJobRow) []JobInfo {
	out := make([]JobInfo, len(rows))
	for i, job := range rows {
		scheduledAt := ""
		if job.ScheduledAt != nil {
			scheduledAt = job.ScheduledAt.Format(time.RFC3339)
		}
		out[i] = JobInfo{
			ID:          job.ID,
			Kind:        job.Kind,
			State:       job.State,
			ScheduledAt: scheduledAt,
			CreatedAt:   job.CreatedAt.Format(time.RFC3339),
			Attempt:     int(job.Attempt),
			MaxAttempts: int(job.MaxAttempts),
		}
	}
	return out
}
