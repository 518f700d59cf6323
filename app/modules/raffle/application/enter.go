package raffleservice

import (
	"context"
	"fmt"
	"math/big"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	"github.com/Black-And-White-Club/frolf-raffle/internal/results"
	"github.com/uptrace/bun"
)

// Enter records one entrant slot for account paying value.
func (s *RaffleService) Enter(ctx context.Context, account raffledomain.Account, value *big.Int) (EnterResult, error) {
	return withTelemetry(s, ctx, "Enter", string(account), func(ctx context.Context) (EnterResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		next := s.round.Clone()
		if err := next.Enter(s.cfg.EntranceFee, account, value); err != nil {
			return results.FailureResult[EnterOutcome, error](err), nil
		}

		outcome := EnterOutcome{
			RoundNumber: next.Number,
			Account:     account,
			Value:       new(big.Int).Set(value),
			Slot:        len(next.Entrants) - 1,
			Pool:        new(big.Int).Set(next.Pool),
			EnteredAt:   s.clock.Now(),
		}

		result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (EnterResult, error) {
			return s.enterLogic(ctx, db, next, outcome)
		})
		if err != nil {
			return result, err
		}

		s.round = next
		if s.metrics != nil {
			s.metrics.RecordEntry(ctx)
		}
		s.observeRound(ctx)

		s.logger.InfoContext(ctx, "Entrant recorded",
			attr.ExtractCorrelationID(ctx),
			attr.Account(string(account)),
			attr.RoundNumber(outcome.RoundNumber),
			attr.Int("slot", outcome.Slot),
			attr.Amount("pool", outcome.Pool),
		)
		s.publish(ctx, raffledomain.EnteredV1, &raffledomain.EnteredPayloadV1{
			RoundNumber: outcome.RoundNumber,
			Account:     string(account),
			Value:       outcome.Value.String(),
			Slot:        outcome.Slot,
			Pool:        outcome.Pool.String(),
			EnteredAt:   outcome.EnteredAt,
		})
		return result, nil
	})
}

func (s *RaffleService) enterLogic(ctx context.Context, db bun.IDB, next *raffledomain.Round, outcome EnterOutcome) (EnterResult, error) {
	if s.repo != nil {
		if err := s.repo.SaveRound(ctx, db, next); err != nil {
			return EnterResult{}, fmt.Errorf("failed to save round: %w", err)
		}
		entry := &raffledb.EntryRecord{
			RoundNumber: outcome.RoundNumber,
			Slot:        outcome.Slot,
			Account:     string(outcome.Account),
			Value:       outcome.Value.String(),
			EnteredAt:   outcome.EnteredAt,
		}
		if err := s.repo.AppendEntry(ctx, db, entry); err != nil {
			return EnterResult{}, fmt.Errorf("failed to append entry: %w", err)
		}
	}
	return results.SuccessResult[EnterOutcome, error](outcome), nil
}
