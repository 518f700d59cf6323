package vrfhandlers

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/go-chi/chi/v5"
)

type subscriptionView struct {
	ID           uint64   `json:"id"`
	Owner        string   `json:"owner"`
	Balance      string   `json:"balance"`
	RequestCount uint64   `json:"request_count"`
	Consumers    []string `json:"consumers"`
}

type requestView struct {
	RequestID        uint64    `json:"request_id"`
	Consumer         string    `json:"consumer"`
	SubscriptionID   uint64    `json:"subscription_id"`
	NumWords         uint32    `json:"num_words"`
	CallbackGasLimit uint32    `json:"callback_gas_limit"`
	RequestedAt      time.Time `json:"requested_at"`
}

func (h *VRFHandlers) HandleHTTPGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid subscription id", http.StatusBadRequest)
		return
	}

	sub, err := h.coordinator.GetSubscription(r.Context(), id)
	if errors.Is(err, vrfdomain.ErrInvalidSubscription) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load subscription", http.StatusInternalServerError)
		return
	}

	consumers := sub.Consumers
	if consumers == nil {
		consumers = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subscriptionView{
		ID:           sub.ID,
		Owner:        sub.Owner,
		Balance:      sub.Balance.String(),
		RequestCount: sub.RequestCount,
		Consumers:    consumers,
	})
}

func (h *VRFHandlers) HandleHTTPListRequests(w http.ResponseWriter, r *http.Request) {
	pending := h.coordinator.PendingRequests(r.Context())

	out := make([]requestView, 0, len(pending))
	for _, req := range pending {
		out = append(out, requestView{
			RequestID:        req.ID,
			Consumer:         req.Consumer,
			SubscriptionID:   req.Params.SubscriptionID,
			NumWords:         req.Params.NumWords,
			CallbackGasLimit: req.Params.CallbackGasLimit,
			RequestedAt:      req.RequestedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func parseAmount(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
