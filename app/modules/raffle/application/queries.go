package raffleservice

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
)

// Snapshot returns a copy of the current round.
func (s *RaffleService) Snapshot(ctx context.Context) raffledomain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round.Snapshot()
}

// GetPlayer returns the account holding slot index of the current round.
func (s *RaffleService) GetPlayer(ctx context.Context, index int) (raffledomain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.round.Entrants) {
		return "", fmt.Errorf("%w: %d of %d", raffledomain.ErrPlayerIndexOutOfRange, index, len(s.round.Entrants))
	}
	return s.round.Entrants[index], nil
}

// Config returns a copy of the immutable raffle configuration.
func (s *RaffleService) Config() raffledomain.Config {
	cfg := s.cfg
	cfg.EntranceFee = new(big.Int).Set(s.cfg.EntranceFee)
	return cfg
}

// ListWinners returns the most recent winners, newest first.
func (s *RaffleService) ListWinners(ctx context.Context, limit int) ([]raffledomain.Winner, error) {
	if s.repo == nil {
		return nil, nil
	}
	winners, err := s.repo.ListWinners(ctx, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}
	return winners, nil
}

// Restore replaces the in-memory round with the persisted one. On an empty
// database the fresh round is persisted instead.
func (s *RaffleService) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	round, err := s.repo.LoadCurrentRound(ctx, nil)
	switch {
	case errors.Is(err, raffledb.ErrNotFound):
		if err := s.repo.SaveRound(ctx, nil, s.round); err != nil {
			return fmt.Errorf("failed to persist initial round: %w", err)
		}
		s.logger.InfoContext(ctx, "Opened first raffle round", attr.RoundNumber(s.round.Number))
	case err != nil:
		return fmt.Errorf("failed to restore raffle round: %w", err)
	default:
		s.round = round
		s.logger.InfoContext(ctx, "Restored raffle round",
			attr.RoundNumber(round.Number),
			attr.String("state", round.State.String()),
			attr.Int("players", len(round.Entrants)),
			attr.Amount("pool", round.Pool),
			attr.RequestID(string(round.PendingRequestID)),
		)
	}
	s.observeRound(ctx)
	return nil
}
