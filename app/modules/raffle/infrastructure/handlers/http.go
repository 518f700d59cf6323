package rafflehandlers

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	rafflereport "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/report"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	"github.com/go-chi/chi/v5"
)

const (
	defaultWinnersLimit = 20
	maxWinnersLimit     = 500
	maxEnterBodyBytes   = 4 << 10
)

type raffleView struct {
	RoundNumber      uint64    `json:"round_number"`
	State            string    `json:"state"`
	Players          []string  `json:"players"`
	NumPlayers       int       `json:"num_players"`
	Pool             string    `json:"pool"`
	OpenedAt         time.Time `json:"opened_at"`
	PendingRequestID string    `json:"pending_request_id,omitempty"`
	RecentWinner     string    `json:"recent_winner,omitempty"`
	EntranceFee      string    `json:"entrance_fee"`
	Interval         string    `json:"interval"`
}

type upkeepView struct {
	UpkeepNeeded bool   `json:"upkeep_needed"`
	Reason       string `json:"reason"`
	Elapsed      string `json:"elapsed"`
	Players      int    `json:"players"`
	Pool         string `json:"pool"`
	State        string `json:"state"`
}

type winnerView struct {
	RoundNumber uint64    `json:"round_number"`
	RequestID   string    `json:"request_id"`
	Winner      string    `json:"winner"`
	WinnerIndex int       `json:"winner_index"`
	Amount      string    `json:"amount"`
	RandomWord  string    `json:"random_word"`
	Players     int       `json:"players"`
	PickedAt    time.Time `json:"picked_at"`
}

type enterRequest struct {
	Account string `json:"account"`
	Value   string `json:"value"`
}

type enterView struct {
	RoundNumber uint64    `json:"round_number"`
	Account     string    `json:"account"`
	Value       string    `json:"value"`
	Slot        int       `json:"slot"`
	Pool        string    `json:"pool"`
	EnteredAt   time.Time `json:"entered_at"`
}

type roundRequestedView struct {
	RoundNumber uint64    `json:"round_number"`
	RequestID   string    `json:"request_id"`
	Players     int       `json:"players"`
	Pool        string    `json:"pool"`
	RequestedAt time.Time `json:"requested_at"`
}

func (h *RaffleHandlers) HandleHTTPGetRaffle(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot(r.Context())
	cfg := h.service.Config()

	players := make([]string, len(snap.Entrants))
	for i, p := range snap.Entrants {
		players[i] = string(p)
	}

	writeJSON(w, http.StatusOK, raffleView{
		RoundNumber:      snap.RoundNumber,
		State:            snap.State.String(),
		Players:          players,
		NumPlayers:       len(players),
		Pool:             amount(snap.Pool),
		OpenedAt:         snap.OpenedAt,
		PendingRequestID: string(snap.PendingRequestID),
		RecentWinner:     string(snap.RecentWinner),
		EntranceFee:      amount(cfg.EntranceFee),
		Interval:         cfg.Interval.String(),
	})
}

func (h *RaffleHandlers) HandleHTTPGetPlayer(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid player index", http.StatusBadRequest)
		return
	}

	player, err := h.service.GetPlayer(r.Context(), index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": index, "account": string(player)})
}

func (h *RaffleHandlers) HandleHTTPCheckUpkeep(w http.ResponseWriter, r *http.Request) {
	status := h.service.CheckUpkeep(r.Context())
	writeJSON(w, http.StatusOK, upkeepView{
		UpkeepNeeded: status.Eligible,
		Reason:       string(status.Reason),
		Elapsed:      status.Elapsed.String(),
		Players:      status.Players,
		Pool:         amount(status.Pool),
		State:        status.State.String(),
	})
}

func (h *RaffleHandlers) HandleHTTPEnter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req enterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnterBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !raffledomain.Account(req.Account).Valid() {
		http.Error(w, raffledomain.ErrInvalidAccount.Error(), http.StatusBadRequest)
		return
	}
	value, err := raffledomain.ParseAmount(req.Value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Enter(ctx, raffledomain.Account(req.Account), value)
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP enter failed", attr.Account(req.Account), attr.Error(err))
		http.Error(w, "entry could not be recorded", http.StatusInternalServerError)
		return
	}
	if result.IsFailure() {
		failure := *result.Failure
		status := http.StatusBadRequest
		switch {
		case errors.Is(failure, raffledomain.ErrInsufficientFee):
			status = http.StatusPaymentRequired
		case errors.Is(failure, raffledomain.ErrRoundNotOpen):
			status = http.StatusConflict
		}
		http.Error(w, failure.Error(), status)
		return
	}

	out := result.Success
	writeJSON(w, http.StatusCreated, enterView{
		RoundNumber: out.RoundNumber,
		Account:     string(out.Account),
		Value:       amount(out.Value),
		Slot:        out.Slot,
		Pool:        amount(out.Pool),
		EnteredAt:   out.EnteredAt,
	})
}

func (h *RaffleHandlers) HandleHTTPPerformUpkeep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.PerformUpkeep(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP upkeep failed", attr.Error(err))
		http.Error(w, "upkeep could not be performed", http.StatusBadGateway)
		return
	}
	if result.IsFailure() {
		http.Error(w, (*result.Failure).Error(), http.StatusConflict)
		return
	}

	out := result.Success
	writeJSON(w, http.StatusAccepted, roundRequestedView{
		RoundNumber: out.RoundNumber,
		RequestID:   string(out.RequestID),
		Players:     out.Players,
		Pool:        amount(out.Pool),
		RequestedAt: out.RequestedAt,
	})
}

func (h *RaffleHandlers) HandleHTTPRetryPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.RetryPayout(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP payout retry failed", attr.Error(err))
		http.Error(w, "payout retry failed", http.StatusInternalServerError)
		return
	}
	if result.IsFailure() {
		failure := *result.Failure
		status := http.StatusConflict
		if errors.Is(failure, raffledomain.ErrPayoutFailed) {
			status = http.StatusBadGateway
		}
		http.Error(w, failure.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, toWinnerView(*result.Success))
}

func (h *RaffleHandlers) HandleHTTPListWinners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, ok := parseLimit(r)
	if !ok {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}

	winners, err := h.service.ListWinners(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list winners", attr.Error(err))
		http.Error(w, "failed to list winners", http.StatusInternalServerError)
		return
	}

	out := make([]winnerView, 0, len(winners))
	for _, winner := range winners {
		out = append(out, toWinnerView(winner))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RaffleHandlers) HandleHTTPWinnersReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, ok := parseLimit(r)
	if !ok {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}

	winners, err := h.service.ListWinners(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list winners", attr.Error(err))
		http.Error(w, "failed to list winners", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="raffle-winners.xlsx"`)
	if err := rafflereport.WriteWinners(w, winners); err != nil {
		h.logger.ErrorContext(ctx, "Failed to write winners report", attr.Error(err))
	}
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultWinnersLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	return min(limit, maxWinnersLimit), true
}

func toWinnerView(w raffledomain.Winner) winnerView {
	return winnerView{
		RoundNumber: w.RoundNumber,
		RequestID:   string(w.RequestID),
		Winner:      string(w.Winner),
		WinnerIndex: w.WinnerIndex,
		Amount:      amount(w.Amount),
		RandomWord:  amount(w.RandomWord),
		Players:     w.Players,
		PickedAt:    w.PickedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
