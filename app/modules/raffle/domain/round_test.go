package raffledomain

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func bigCmp() cmp.Option {
	return cmp.Comparer(func(a, b *big.Int) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Cmp(b) == 0
	})
}

func TestRound_Enter(t *testing.T) {
	fee := big.NewInt(10)

	tests := []struct {
		name      string
		setup     func(r *Round)
		account   Account
		value     *big.Int
		wantErr   error
		wantPool  int64
		wantSlots []Account
	}{
		{
			name:      "exact fee",
			account:   "A",
			value:     big.NewInt(10),
			wantPool:  10,
			wantSlots: []Account{"A"},
		},
		{
			name:      "overpayment stays in the pool",
			account:   "A",
			value:     big.NewInt(25),
			wantPool:  25,
			wantSlots: []Account{"A"},
		},
		{
			name:     "below fee",
			account:  "A",
			value:    big.NewInt(9),
			wantErr:  ErrInsufficientFee,
			wantPool: 0,
		},
		{
			name:     "fee checked before state",
			setup:    func(r *Round) { r.BeginCalculation("1", t0) },
			account:  "A",
			value:    big.NewInt(1),
			wantErr:  ErrInsufficientFee,
			wantPool: 0,
		},
		{
			name:     "calculating rejects",
			setup:    func(r *Round) { r.BeginCalculation("1", t0) },
			account:  "A",
			value:    big.NewInt(10),
			wantErr:  ErrRoundNotOpen,
			wantPool: 0,
		},
		{
			name:     "empty account",
			value:    big.NewInt(10),
			wantErr:  ErrInvalidAccount,
			wantPool: 0,
		},
		{
			name:     "account longer than storage allows",
			account:  Account(strings.Repeat("a", MaxAccountLength+1)),
			value:    big.NewInt(10),
			wantErr:  ErrInvalidAccount,
			wantPool: 0,
		},
		{
			name:      "account at storage limit",
			account:   Account(strings.Repeat("é", MaxAccountLength)),
			value:     big.NewInt(10),
			wantPool:  10,
			wantSlots: []Account{Account(strings.Repeat("é", MaxAccountLength))},
		},
		{
			name:     "invalid utf-8 account",
			account:  Account("\xff\xfe"),
			value:    big.NewInt(10),
			wantErr:  ErrInvalidAccount,
			wantPool: 0,
		},
		{
			name:     "nul byte in account",
			account:  Account("a\x00b"),
			value:    big.NewInt(10),
			wantErr:  ErrInvalidAccount,
			wantPool: 0,
		},
		{
			name:      "repeat entrant takes another slot",
			setup:     func(r *Round) { require.NoError(t, r.Enter(fee, "A", big.NewInt(10))) },
			account:   "A",
			value:     big.NewInt(10),
			wantPool:  20,
			wantSlots: []Account{"A", "A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRound(t0)
			if tt.setup != nil {
				tt.setup(r)
			}
			err := r.Enter(fee, tt.account, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 0, r.Pool.Cmp(big.NewInt(tt.wantPool)), "pool = %s", r.Pool)
			assert.Equal(t, tt.wantSlots, r.Entrants)
		})
	}
}

func TestRound_CheckUpkeep(t *testing.T) {
	interval := 100 * time.Second
	fee := big.NewInt(10)

	tests := []struct {
		name   string
		setup  func(r *Round)
		at     time.Time
		want   UpkeepReason
		wantOK bool
	}{
		{
			name:  "fresh round before interval",
			at:    t0.Add(10 * time.Second),
			want:  UpkeepIntervalNotElapsed,
			setup: func(r *Round) { _ = r.Enter(fee, "A", fee) },
		},
		{
			name: "no players after interval",
			at:   t0.Add(101 * time.Second),
			want: UpkeepNoPlayers,
		},
		{
			name:   "eligible exactly at interval",
			at:     t0.Add(interval),
			setup:  func(r *Round) { _ = r.Enter(fee, "A", fee) },
			want:   UpkeepEligible,
			wantOK: true,
		},
		{
			name: "calculating",
			at:   t0.Add(time.Hour),
			setup: func(r *Round) {
				_ = r.Enter(fee, "A", fee)
				r.BeginCalculation("7", t0)
			},
			want: UpkeepNotOpen,
		},
		{
			name: "zero balance",
			at:   t0.Add(time.Hour),
			setup: func(r *Round) {
				r.Entrants = []Account{"A"}
			},
			want: UpkeepNoBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRound(t0)
			if tt.setup != nil {
				tt.setup(r)
			}
			before := r.Clone()
			got := r.CheckUpkeep(tt.at, interval)
			assert.Equal(t, tt.want, got.Reason)
			assert.Equal(t, tt.wantOK, got.Eligible)
			if diff := cmp.Diff(before, r, bigCmp()); diff != "" {
				t.Errorf("CheckUpkeep mutated round (-before +after):\n%s", diff)
			}
			if tt.wantOK {
				assert.NoError(t, got.Err())
			} else {
				var ue *UpkeepError
				require.True(t, errors.As(got.Err(), &ue))
				assert.Equal(t, tt.want, ue.Reason)
				assert.ErrorIs(t, got.Err(), ErrUpkeepNotNeeded)
			}
		})
	}
}

func TestRound_SelectWinner(t *testing.T) {
	r := NewRound(t0)
	r.Entrants = []Account{"A", "B", "C", "D"}

	tests := []struct {
		word    int64
		wantIdx int
		want    Account
	}{
		{17, 1, "B"},
		{11, 3, "D"},
		{4, 0, "A"},
		{0, 0, "A"},
	}
	for _, tt := range tests {
		idx, acct := r.SelectWinner(big.NewInt(tt.word))
		assert.Equal(t, tt.wantIdx, idx, "word %d", tt.word)
		assert.Equal(t, tt.want, acct, "word %d", tt.word)
	}

	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)
	idx, _ := r.SelectWinner(huge)
	assert.Equal(t, 3, idx)
}

func TestRound_Lifecycle(t *testing.T) {
	fee := big.NewInt(10)
	r := NewRound(t0)
	for _, a := range []Account{"A", "B"} {
		require.NoError(t, r.Enter(fee, a, fee))
	}

	r.BeginCalculation("42", t0.Add(time.Minute))
	assert.True(t, r.AcceptsFulfillment("42"))
	assert.False(t, r.AcceptsFulfillment("43"))

	r.Reset(t0.Add(2*time.Minute), "B")

	want := &Round{
		Number:       2,
		Pool:         new(big.Int),
		OpenedAt:     t0.Add(2 * time.Minute),
		State:        StateOpen,
		RecentWinner: "B",
	}
	if diff := cmp.Diff(want, r, bigCmp()); diff != "" {
		t.Errorf("after reset (-want +got):\n%s", diff)
	}
	assert.False(t, r.AcceptsFulfillment("42"))
}

func TestRound_SnapshotIsIndependent(t *testing.T) {
	r := NewRound(t0)
	require.NoError(t, r.Enter(big.NewInt(1), "A", big.NewInt(5)))

	snap := r.Snapshot()
	snap.Entrants[0] = "Z"
	snap.Pool.SetInt64(999)

	assert.Equal(t, Account("A"), r.Entrants[0])
	assert.Equal(t, int64(5), r.Pool.Int64())
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{EntranceFee: big.NewInt(1), Interval: time.Second, NumWords: 1}
	require.NoError(t, valid.Validate())

	noFee := valid
	noFee.EntranceFee = big.NewInt(0)
	assert.Error(t, noFee.Validate())

	noInterval := valid
	noInterval.Interval = 0
	assert.Error(t, noInterval.Validate())

	noWords := valid
	noWords.NumWords = 0
	assert.Error(t, noWords.Validate())
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("10000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000", v.String())

	for _, bad := range []string{"", "-1", "1e18", "0x10", "abc"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}
