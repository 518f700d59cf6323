package vrfhandlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	vrfservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/application"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingConsumer struct {
	words []*big.Int
	err   error
}

func (c *recordingConsumer) RawFulfillRandomWords(ctx context.Context, requestID uint64, words []*big.Int) error {
	c.words = words
	return c.err
}

type fixture struct {
	coordinator *vrfservice.Coordinator
	consumer    *recordingConsumer
	subID       uint64
	handlers    Handlers
}

func newFixture(t *testing.T, fund int64) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")

	coord := vrfservice.NewCoordinator(vrfservice.Config{BaseFee: big.NewInt(1), GasPriceLink: big.NewInt(0)}, nil, logger, tracer)
	consumer := &recordingConsumer{}
	coord.RegisterConsumer("raffle", consumer)
	subID, err := coord.Provision(context.Background(), vrfservice.ProvisionConfig{Owner: "ops", Consumer: "raffle", FundAmount: big.NewInt(fund)})
	require.NoError(t, err)

	return &fixture{coordinator: coord, consumer: consumer, subID: subID, handlers: NewVRFHandlers(coord, logger, tracer)}
}

func (f *fixture) request(t *testing.T) uint64 {
	t.Helper()
	id, err := f.coordinator.RequestRandomWords(context.Background(), "raffle", vrfdomain.RandomWordsRequest{
		SubscriptionID:   f.subID,
		CallbackGasLimit: 500000,
		NumWords:         1,
	})
	require.NoError(t, err)
	return id
}

func TestHandleFulfillRequested(t *testing.T) {
	t.Run("override words reach the consumer", func(t *testing.T) {
		f := newFixture(t, 10)
		f.request(t)

		res, err := f.handlers.HandleFulfillRequested(context.Background(), &vrfdomain.FulfillRequestedPayloadV1{
			RequestID: "1", Consumer: "raffle", Words: []string{"17"},
		})
		require.NoError(t, err)
		assert.Empty(t, res)
		require.Len(t, f.consumer.words, 1)
		assert.Equal(t, "17", f.consumer.words[0].String())
	})

	t.Run("derived words when none given", func(t *testing.T) {
		f := newFixture(t, 10)
		id := f.request(t)

		res, err := f.handlers.HandleFulfillRequested(context.Background(), &vrfdomain.FulfillRequestedPayloadV1{RequestID: "1", Consumer: "raffle"})
		require.NoError(t, err)
		assert.Empty(t, res)
		assert.Equal(t, vrfservice.DeriveWords(id, 1), f.consumer.words)
	})

	tests := []struct {
		name    string
		fund    int64
		payload *vrfdomain.FulfillRequestedPayloadV1
		setup   func(f *fixture)
	}{
		{name: "unknown request", fund: 10, payload: &vrfdomain.FulfillRequestedPayloadV1{RequestID: "42", Consumer: "raffle"}},
		{name: "invalid id", fund: 10, payload: &vrfdomain.FulfillRequestedPayloadV1{RequestID: "abc", Consumer: "raffle"}},
		{name: "invalid words", fund: 10, payload: &vrfdomain.FulfillRequestedPayloadV1{RequestID: "1", Consumer: "raffle", Words: []string{"x"}}},
		{name: "underfunded", fund: 0, payload: &vrfdomain.FulfillRequestedPayloadV1{RequestID: "1", Consumer: "raffle"}},
		{
			name:    "consumer rejects",
			fund:    10,
			payload: &vrfdomain.FulfillRequestedPayloadV1{RequestID: "1", Consumer: "raffle"},
			setup:   func(f *fixture) { f.consumer.err = errors.New("payout failed") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.fund)
			f.request(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			res, err := f.handlers.HandleFulfillRequested(context.Background(), tt.payload)
			require.NoError(t, err)
			require.Len(t, res, 1)
			assert.Equal(t, vrfdomain.FulfillFailedV1, res[0].Topic)
			assert.NotEmpty(t, res[0].Payload.(*vrfdomain.FulfillFailedPayloadV1).Reason)
		})
	}
}

func TestHandleSubscriptionFundRequested(t *testing.T) {
	f := newFixture(t, 10)

	res, err := f.handlers.HandleSubscriptionFundRequested(context.Background(), &vrfdomain.SubscriptionFundRequestedPayloadV1{SubscriptionID: f.subID, Amount: "5"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, vrfdomain.SubscriptionFundedV1, res[0].Topic)
	assert.Equal(t, &vrfdomain.SubscriptionFundedPayloadV1{SubscriptionID: f.subID, OldBalance: "10", NewBalance: "15"}, res[0].Payload)

	for _, p := range []*vrfdomain.SubscriptionFundRequestedPayloadV1{
		{SubscriptionID: 99, Amount: "5"},
		{SubscriptionID: f.subID, Amount: "-5"},
		{SubscriptionID: f.subID, Amount: "lots"},
	} {
		res, err := f.handlers.HandleSubscriptionFundRequested(context.Background(), p)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, vrfdomain.SubscriptionFundFailedV1, res[0].Topic)
	}
}

func TestHTTPHandlers(t *testing.T) {
	f := newFixture(t, 10)
	f.request(t)

	r := chi.NewRouter()
	r.Get("/api/vrf/subscriptions/{id}", f.handlers.HandleHTTPGetSubscription)
	r.Get("/api/vrf/requests", f.handlers.HandleHTTPListRequests)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vrf/subscriptions/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sub subscriptionView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sub))
	assert.Equal(t, "ops", sub.Owner)
	assert.Equal(t, []string{"raffle"}, sub.Consumers)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vrf/subscriptions/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vrf/subscriptions/x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vrf/requests", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []requestView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pending))
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(1), pending[0].RequestID)
	assert.Equal(t, uint32(500000), pending[0].CallbackGasLimit)
}
