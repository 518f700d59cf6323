package raffleservice

import (
	"context"
	"fmt"
	"math/big"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	"github.com/Black-And-White-Club/frolf-raffle/internal/results"
	"github.com/uptrace/bun"
)

// CheckUpkeep reports whether the current round may be triggered now.
func (s *RaffleService) CheckUpkeep(ctx context.Context) raffledomain.UpkeepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round.CheckUpkeep(s.clock.Now(), s.cfg.Interval)
}

// PerformUpkeep locks the round and requests randomness for it.
//
// The request is issued while mu is held and the round is swapped to
// CALCULATING before the lock is released, so no entry or second trigger can
// observe an OPEN round with a request in flight. If persisting the new state
// fails the in-memory round still stays CALCULATING, the error is returned and
// no RoundRequested event is emitted.
func (s *RaffleService) PerformUpkeep(ctx context.Context) (UpkeepResult, error) {
	return withTelemetry(s, ctx, "PerformUpkeep", "", func(ctx context.Context) (UpkeepResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		now := s.clock.Now()
		status := s.round.CheckUpkeep(now, s.cfg.Interval)
		if !status.Eligible {
			return results.FailureResult[RoundRequested, error](status.Err()), nil
		}

		if s.oracle == nil {
			return UpkeepResult{}, fmt.Errorf("no randomness oracle configured")
		}
		requestID, err := s.oracle.RequestRandomWords(ctx, s.cfg.OracleRequest())
		if err != nil {
			return UpkeepResult{}, fmt.Errorf("failed to request random words: %w", err)
		}

		next := s.round.Clone()
		next.BeginCalculation(requestID, now)
		s.round = next
		s.observeRound(ctx)

		requested := RoundRequested{
			RoundNumber: next.Number,
			RequestID:   requestID,
			Players:     len(next.Entrants),
			Pool:        new(big.Int).Set(next.Pool),
			RequestedAt: now,
		}

		result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (UpkeepResult, error) {
			if s.repo != nil {
				if err := s.repo.SaveRound(ctx, db, next); err != nil {
					return UpkeepResult{}, fmt.Errorf("failed to save calculating round: %w", err)
				}
			}
			return results.SuccessResult[RoundRequested, error](requested), nil
		})

		if err != nil {
			s.logger.ErrorContext(ctx, "Round locked but not persisted",
				attr.ExtractCorrelationID(ctx),
				attr.RoundNumber(requested.RoundNumber),
				attr.RequestID(string(requestID)),
				attr.Error(err),
			)
			return result, err
		}

		s.logger.InfoContext(ctx, "Round locked awaiting randomness",
			attr.ExtractCorrelationID(ctx),
			attr.RoundNumber(requested.RoundNumber),
			attr.RequestID(string(requestID)),
			attr.Int("players", requested.Players),
			attr.Amount("pool", requested.Pool),
		)
		s.publish(ctx, raffledomain.RoundRequestedV1, &raffledomain.RoundRequestedPayloadV1{
			RoundNumber: requested.RoundNumber,
			RequestID:   string(requestID),
			Players:     requested.Players,
			Pool:        requested.Pool.String(),
			RequestedAt: now,
		})

		return result, err
	})
}
