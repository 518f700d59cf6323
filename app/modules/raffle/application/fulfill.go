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

// FulfillRandomWords consumes the oracle answer for the pending request, pays
// the pool to the selected entrant and opens the next round.
func (s *RaffleService) FulfillRandomWords(ctx context.Context, requestID raffledomain.RequestID, words []*big.Int) (FulfillResult, error) {
	return withTelemetry(s, ctx, "FulfillRandomWords", string(requestID), func(ctx context.Context) (FulfillResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.fulfillLocked(ctx, requestID, words)
	})
}

// RetryPayout replays the stored fulfillment of a round whose payout failed.
func (s *RaffleService) RetryPayout(ctx context.Context) (FulfillResult, error) {
	return withTelemetry(s, ctx, "RetryPayout", "", func(ctx context.Context) (FulfillResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.round.State != raffledomain.StateCalculating || len(s.round.RandomWords) == 0 {
			return results.FailureResult[raffledomain.Winner, error](raffledomain.ErrNothingToRetry), nil
		}
		return s.fulfillLocked(ctx, s.round.PendingRequestID, s.round.RandomWords)
	})
}

// PayoutReference identifies the transfer of a round to the treasury.
func PayoutReference(roundNumber uint64, requestID raffledomain.RequestID) string {
	return fmt.Sprintf("round-%d:%s", roundNumber, requestID)
}

// fulfillLocked must be called with mu held.
func (s *RaffleService) fulfillLocked(ctx context.Context, requestID raffledomain.RequestID, words []*big.Int) (FulfillResult, error) {
	if !s.round.AcceptsFulfillment(requestID) {
		return results.FailureResult[raffledomain.Winner, error](
			fmt.Errorf("%w: %q", raffledomain.ErrUnknownRequest, requestID),
		), nil
	}
	if len(words) == 0 || words[0] == nil {
		return results.FailureResult[raffledomain.Winner, error](raffledomain.ErrNoRandomWords), nil
	}
	if s.treasury == nil {
		return FulfillResult{}, fmt.Errorf("no treasury configured")
	}

	// The first delivered words are binding for every retry of this request.
	settled := s.round.Clone()
	if len(settled.RandomWords) == 0 {
		settled.RandomWords = make([]*big.Int, len(words))
		for i, w := range words {
			settled.RandomWords[i] = new(big.Int).Set(w)
		}
	}

	word := settled.RandomWords[0]
	index, winner := settled.SelectWinner(word)
	amount := new(big.Int).Set(settled.Pool)
	now := s.clock.Now()

	transfer := raffledomain.Transfer{
		Reference: PayoutReference(settled.Number, requestID),
		Recipient: winner,
		Amount:    amount,
	}
	if err := s.treasury.Transfer(ctx, transfer); err != nil {
		return s.payoutFailed(ctx, settled, transfer, err)
	}

	record := raffledomain.Winner{
		RoundNumber: settled.Number,
		RequestID:   requestID,
		Winner:      winner,
		WinnerIndex: index,
		Amount:      amount,
		RandomWord:  new(big.Int).Set(word),
		Players:     len(settled.Entrants),
		PickedAt:    now,
	}

	next := settled.Clone()
	next.Reset(now, winner)

	result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (FulfillResult, error) {
		if s.repo != nil {
			if err := s.repo.RecordWinner(ctx, db, record); err != nil {
				return FulfillResult{}, fmt.Errorf("failed to record winner: %w", err)
			}
			if err := s.repo.SaveRound(ctx, db, next); err != nil {
				return FulfillResult{}, fmt.Errorf("failed to open next round: %w", err)
			}
		}
		return results.SuccessResult[raffledomain.Winner, error](record), nil
	})
	if err != nil {
		// The transfer is idempotent per reference, so the round stays locked
		// with its words and a retry completes the reset without paying twice.
		s.round = settled
		return result, err
	}

	s.round = next
	if s.metrics != nil {
		s.metrics.RecordPayout(ctx, amount)
	}
	s.observeRound(ctx)

	s.logger.InfoContext(ctx, "Winner picked",
		attr.ExtractCorrelationID(ctx),
		attr.RoundNumber(record.RoundNumber),
		attr.RequestID(string(requestID)),
		attr.Account(string(winner)),
		attr.Int("winner_index", index),
		attr.Amount("amount", amount),
	)
	s.publish(ctx, raffledomain.WinnerPickedV1, &raffledomain.WinnerPickedPayloadV1{
		RoundNumber: record.RoundNumber,
		RequestID:   string(requestID),
		Winner:      string(winner),
		WinnerIndex: index,
		Amount:      amount.String(),
		PickedAt:    now,
	})
	return result, nil
}

// payoutFailed keeps the round CALCULATING with its words recorded so the
// payout can be retried for the same winner.
func (s *RaffleService) payoutFailed(ctx context.Context, settled *raffledomain.Round, transfer raffledomain.Transfer, cause error) (FulfillResult, error) {
	_, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (FulfillResult, error) {
		if s.repo != nil {
			if err := s.repo.SaveRound(ctx, db, settled); err != nil {
				return FulfillResult{}, err
			}
		}
		return FulfillResult{}, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist random words after payout failure",
			attr.ExtractCorrelationID(ctx),
			attr.RoundNumber(settled.Number),
			attr.Error(err),
		)
	}
	s.round = settled

	if s.metrics != nil {
		s.metrics.RecordPayoutFailure(ctx)
	}
	s.logger.ErrorContext(ctx, "Payout rejected by treasury",
		attr.ExtractCorrelationID(ctx),
		attr.RoundNumber(settled.Number),
		attr.RequestID(string(settled.PendingRequestID)),
		attr.Account(string(transfer.Recipient)),
		attr.Amount("amount", transfer.Amount),
		attr.Error(cause),
	)

	return results.FailureResult[raffledomain.Winner, error](&raffledomain.PayoutError{
		RequestID: settled.PendingRequestID,
		Winner:    transfer.Recipient,
		Amount:    transfer.Amount,
		Err:       cause,
	}), nil
}
