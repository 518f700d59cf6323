//go:build integration

package raffleintegrationtests

import (
	"context"
	"math/big"
	"testing"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	raffletreasury "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/treasury"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_RoundRoundTrip(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	repo := raffledb.NewRepository(env.DB)

	_, err := repo.LoadCurrentRound(ctx, nil)
	require.ErrorIs(t, err, raffledb.ErrNotFound)

	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	round := raffledomain.NewRound(opened)
	require.NoError(t, repo.SaveRound(ctx, nil, round))

	accounts := []string{gofakeit.Username(), gofakeit.Username(), gofakeit.Username()}
	for i, account := range accounts {
		require.NoError(t, repo.AppendEntry(ctx, nil, &raffledb.EntryRecord{
			RoundNumber: round.Number,
			Slot:        i,
			Account:     account,
			Value:       "10",
			EnteredAt:   opened.Add(time.Duration(i) * time.Second),
		}))
	}

	round.Pool = big.NewInt(30)
	round.State = raffledomain.StateCalculating
	round.PendingRequestID = "9"
	round.RequestedAt = opened.Add(time.Minute)
	require.NoError(t, repo.SaveRound(ctx, nil, round))

	got, err := repo.LoadCurrentRound(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, round.Number, got.Number)
	assert.Equal(t, raffledomain.StateCalculating, got.State)
	assert.Equal(t, raffledomain.RequestID("9"), got.PendingRequestID)
	assert.Equal(t, "30", got.Pool.String())
	require.Len(t, got.Entrants, 3)
	for i, account := range accounts {
		assert.Equal(t, raffledomain.Account(account), got.Entrants[i])
	}
}

func TestRepository_WinnersNewestFirst(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	repo := raffledb.NewRepository(env.DB)

	picked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for n := uint64(1); n <= 3; n++ {
		require.NoError(t, repo.RecordWinner(ctx, nil, raffledomain.Winner{
			RoundNumber: n,
			RequestID:   raffledomain.RequestID(gofakeit.UUID()),
			Winner:      raffledomain.Account(gofakeit.Username()),
			WinnerIndex: int(n) - 1,
			Amount:      big.NewInt(int64(n * 10)),
			RandomWord:  new(big.Int).Lsh(big.NewInt(1), 255),
			Players:     int(n),
			PickedAt:    picked.Add(time.Duration(n) * time.Minute),
		}))
	}

	winners, err := repo.ListWinners(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.Equal(t, uint64(3), winners[0].RoundNumber)
	assert.Equal(t, uint64(2), winners[1].RoundNumber)
	assert.Equal(t, 256, winners[0].RandomWord.BitLen())
}

func TestRepository_WinnersMayShareRequestID(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	repo := raffledb.NewRepository(env.DB)

	picked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for n := uint64(1); n <= 2; n++ {
		require.NoError(t, repo.RecordWinner(ctx, nil, raffledomain.Winner{
			RoundNumber: n,
			RequestID:   "1",
			Winner:      "A",
			Amount:      big.NewInt(10),
			RandomWord:  big.NewInt(17),
			Players:     1,
			PickedAt:    picked.Add(time.Duration(n) * time.Minute),
		}))
	}

	winners, err := repo.ListWinners(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, winners, 2)
}

func TestLedger_TransferIsIdempotentPerReference(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ledger := raffletreasury.NewLedger(env.DB)

	transfer := raffledomain.Transfer{Reference: "round-1:1", Recipient: "A", Amount: big.NewInt(40)}
	require.NoError(t, ledger.Transfer(ctx, transfer))
	require.NoError(t, ledger.Transfer(ctx, transfer))
	require.NoError(t, ledger.Transfer(ctx, raffledomain.Transfer{Reference: "round-2:2", Recipient: "A", Amount: big.NewInt(5)}))

	balance, err := ledger.Balance(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "45", balance.String())

	balance, err = ledger.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Sign())
}
