package vrfservice

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/sha3"
)

// Consumer receives fulfilled random words.
type Consumer interface {
	RawFulfillRandomWords(ctx context.Context, requestID uint64, words []*big.Int) error
}

// Scheduler arranges for a pending request to be fulfilled later.
type Scheduler interface {
	ScheduleFulfillment(ctx context.Context, requestID uint64, consumer string) error
}

// Config prices requests. Payment is BaseFee + GasPriceLink * callback gas limit.
type Config struct {
	BaseFee      *big.Int
	GasPriceLink *big.Int
}

// Coordinator is an in-process randomness coordinator with funded
// subscriptions. Words are derived deterministically from the request id
// unless overridden.
type Coordinator struct {
	mu            sync.Mutex
	subscriptions map[uint64]*vrfdomain.Subscription
	requests      map[uint64]*vrfdomain.Request
	lastSubID     uint64
	lastRequestID uint64

	consumersMu sync.RWMutex
	consumers   map[string]Consumer
	scheduler   Scheduler

	cfg       Config
	publisher message.Publisher
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewCoordinator(cfg Config, publisher message.Publisher, logger *slog.Logger, tracer trace.Tracer) *Coordinator {
	if cfg.BaseFee == nil {
		cfg.BaseFee = new(big.Int)
	}
	if cfg.GasPriceLink == nil {
		cfg.GasPriceLink = new(big.Int)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		subscriptions: make(map[uint64]*vrfdomain.Subscription),
		requests:      make(map[uint64]*vrfdomain.Request),
		consumers:     make(map[string]Consumer),
		cfg:           cfg,
		publisher:     publisher,
		logger:        logger,
		tracer:        tracer,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RegisterConsumer binds name to the callback that receives its words.
func (c *Coordinator) RegisterConsumer(name string, consumer Consumer) {
	c.consumersMu.Lock()
	defer c.consumersMu.Unlock()
	c.consumers[name] = consumer
}

// UseScheduler enables automatic fulfillment of new requests.
func (c *Coordinator) UseScheduler(s Scheduler) {
	c.consumersMu.Lock()
	defer c.consumersMu.Unlock()
	c.scheduler = s
}

func (c *Coordinator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (c *Coordinator) CreateSubscription(ctx context.Context, owner string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastSubID++
	id := c.lastSubID
	c.subscriptions[id] = &vrfdomain.Subscription{
		ID:      id,
		Owner:   owner,
		Balance: new(big.Int),
	}
	c.logger.InfoContext(ctx, "Subscription created", attr.Uint64("subscription_id", id), attr.String("owner", owner))
	return id, nil
}

// FundSubscription adds amount to the subscription and returns the old and new balance.
func (c *Coordinator) FundSubscription(ctx context.Context, subID uint64, amount *big.Int) (*big.Int, *big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, nil, vrfdomain.ErrInvalidAmount
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscriptions[subID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", vrfdomain.ErrInvalidSubscription, subID)
	}
	old := new(big.Int).Set(sub.Balance)
	sub.Balance = new(big.Int).Add(sub.Balance, amount)

	c.logger.InfoContext(ctx, "Subscription funded",
		attr.Uint64("subscription_id", subID),
		attr.Amount("old_balance", old),
		attr.Amount("new_balance", sub.Balance),
	)
	return old, new(big.Int).Set(sub.Balance), nil
}

func (c *Coordinator) AddConsumer(ctx context.Context, subID uint64, consumer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscriptions[subID]
	if !ok {
		return fmt.Errorf("%w: %d", vrfdomain.ErrInvalidSubscription, subID)
	}
	if sub.HasConsumer(consumer) {
		return nil
	}
	if len(sub.Consumers) >= vrfdomain.MaxConsumers {
		return vrfdomain.ErrTooManyConsumers
	}
	sub.Consumers = append(sub.Consumers, consumer)
	c.logger.InfoContext(ctx, "Consumer added", attr.Uint64("subscription_id", subID), attr.String("consumer", consumer))
	return nil
}

func (c *Coordinator) RemoveConsumer(ctx context.Context, subID uint64, consumer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscriptions[subID]
	if !ok {
		return fmt.Errorf("%w: %d", vrfdomain.ErrInvalidSubscription, subID)
	}
	for i, existing := range sub.Consumers {
		if existing == consumer {
			sub.Consumers = append(sub.Consumers[:i], sub.Consumers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", vrfdomain.ErrInvalidConsumer, consumer)
}

func (c *Coordinator) GetSubscription(ctx context.Context, subID uint64) (vrfdomain.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscriptions[subID]
	if !ok {
		return vrfdomain.Subscription{}, fmt.Errorf("%w: %d", vrfdomain.ErrInvalidSubscription, subID)
	}
	return sub.Clone(), nil
}

// RequestRandomWords records a request from consumer and returns its id.
// Ids start at 1, or after the last reserved or adopted id, and are never
// reused.
func (c *Coordinator) RequestRandomWords(ctx context.Context, consumer string, req vrfdomain.RandomWordsRequest) (uint64, error) {
	ctx, span := c.startSpan(ctx, "Coordinator.RequestRandomWords",
		attribute.String("consumer", consumer),
		attribute.Int64("subscription_id", int64(req.SubscriptionID)),
	)
	defer span.End()

	if req.NumWords > vrfdomain.MaxNumWords {
		return 0, fmt.Errorf("%w: %d > %d", vrfdomain.ErrNumWordsTooLarge, req.NumWords, vrfdomain.MaxNumWords)
	}

	c.mu.Lock()
	sub, ok := c.subscriptions[req.SubscriptionID]
	if !ok {
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", vrfdomain.ErrInvalidSubscription, req.SubscriptionID)
	}
	if !sub.HasConsumer(consumer) {
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", vrfdomain.ErrInvalidConsumer, consumer)
	}
	c.lastRequestID++
	request := &vrfdomain.Request{
		ID:          c.lastRequestID,
		Consumer:    consumer,
		Params:      req,
		RequestedAt: c.now(),
	}
	c.requests[request.ID] = request
	sub.RequestCount++
	c.mu.Unlock()

	span.SetAttributes(attribute.Int64("request_id", int64(request.ID)))
	c.logger.InfoContext(ctx, "Random words requested",
		attr.ExtractCorrelationID(ctx),
		attr.RequestID(strconv.FormatUint(request.ID, 10)),
		attr.String("consumer", consumer),
		attr.Int("num_words", int(req.NumWords)),
	)
	c.publish(ctx, vrfdomain.RandomWordsRequestedV1, &vrfdomain.RandomWordsRequestedPayloadV1{
		RequestID:            strconv.FormatUint(request.ID, 10),
		Consumer:             consumer,
		KeyHash:              req.KeyHash,
		SubscriptionID:       req.SubscriptionID,
		RequestConfirmations: req.RequestConfirmations,
		CallbackGasLimit:     req.CallbackGasLimit,
		NumWords:             req.NumWords,
		RequestedAt:          request.RequestedAt,
	})

	c.schedule(ctx, request.ID, consumer)
	return request.ID, nil
}

// AdoptRequest re-registers a request issued before a restart so that it can
// still be fulfilled. New ids continue past requestID. Adopting a request that
// is already pending is a no-op.
func (c *Coordinator) AdoptRequest(ctx context.Context, requestID uint64, consumer string, req vrfdomain.RandomWordsRequest) error {
	if requestID == 0 {
		return vrfdomain.ErrNonexistentRequest
	}

	c.mu.Lock()
	if _, ok := c.requests[requestID]; ok {
		c.mu.Unlock()
		return nil
	}
	sub, ok := c.subscriptions[req.SubscriptionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", vrfdomain.ErrInvalidSubscription, req.SubscriptionID)
	}
	if !sub.HasConsumer(consumer) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", vrfdomain.ErrInvalidConsumer, consumer)
	}
	c.requests[requestID] = &vrfdomain.Request{
		ID:          requestID,
		Consumer:    consumer,
		Params:      req,
		RequestedAt: c.now(),
	}
	if requestID > c.lastRequestID {
		c.lastRequestID = requestID
	}
	sub.RequestCount++
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Adopted pending randomness request",
		attr.RequestID(strconv.FormatUint(requestID, 10)),
		attr.String("consumer", consumer),
	)
	c.schedule(ctx, requestID, consumer)
	return nil
}

// ReserveRequestIDs makes sure new request ids are greater than last.
func (c *Coordinator) ReserveRequestIDs(last uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last > c.lastRequestID {
		c.lastRequestID = last
	}
}

func (c *Coordinator) schedule(ctx context.Context, requestID uint64, consumer string) {
	c.consumersMu.RLock()
	scheduler := c.scheduler
	c.consumersMu.RUnlock()
	if scheduler == nil {
		return
	}
	if err := scheduler.ScheduleFulfillment(ctx, requestID, consumer); err != nil {
		// The request stays pending and can still be fulfilled manually.
		c.logger.ErrorContext(ctx, "Failed to schedule fulfillment",
			attr.RequestID(strconv.FormatUint(requestID, 10)),
			attr.Error(err),
		)
	}
}

// FulfillRandomWords answers requestID with words derived from the request id.
func (c *Coordinator) FulfillRandomWords(ctx context.Context, requestID uint64, consumer string) (vrfdomain.Fulfillment, error) {
	return c.FulfillRandomWordsWithOverride(ctx, requestID, consumer, nil)
}

// FulfillRandomWordsWithOverride answers requestID with words, or with derived
// words when none are given. The subscription is charged and the request is
// consumed even when the consumer callback fails.
func (c *Coordinator) FulfillRandomWordsWithOverride(ctx context.Context, requestID uint64, consumer string, words []*big.Int) (vrfdomain.Fulfillment, error) {
	ctx, span := c.startSpan(ctx, "Coordinator.FulfillRandomWords",
		attribute.Int64("request_id", int64(requestID)),
		attribute.String("consumer", consumer),
	)
	defer span.End()

	c.mu.Lock()
	request, ok := c.requests[requestID]
	if !ok {
		c.mu.Unlock()
		return vrfdomain.Fulfillment{}, vrfdomain.ErrNonexistentRequest
	}
	if request.Consumer != consumer {
		c.mu.Unlock()
		return vrfdomain.Fulfillment{}, fmt.Errorf("%w: request %d belongs to %s", vrfdomain.ErrInvalidConsumer, requestID, request.Consumer)
	}

	if len(words) == 0 {
		words = DeriveWords(requestID, request.Params.NumWords)
	} else if uint32(len(words)) != request.Params.NumWords {
		c.mu.Unlock()
		return vrfdomain.Fulfillment{}, fmt.Errorf("%w: got %d, want %d", vrfdomain.ErrWordCountMismatch, len(words), request.Params.NumWords)
	}

	payment := c.payment(request.Params.CallbackGasLimit)
	sub, ok := c.subscriptions[request.Params.SubscriptionID]
	if !ok {
		c.mu.Unlock()
		return vrfdomain.Fulfillment{}, fmt.Errorf("%w: %d", vrfdomain.ErrInvalidSubscription, request.Params.SubscriptionID)
	}
	if sub.Balance.Cmp(payment) < 0 {
		c.mu.Unlock()
		return vrfdomain.Fulfillment{}, fmt.Errorf("%w: balance %s < payment %s", vrfdomain.ErrInsufficientBalance, sub.Balance, payment)
	}
	sub.Balance = new(big.Int).Sub(sub.Balance, payment)
	delete(c.requests, requestID)
	c.mu.Unlock()

	result := vrfdomain.Fulfillment{
		RequestID: requestID,
		Consumer:  consumer,
		Words:     words,
		Payment:   payment,
	}

	c.consumersMu.RLock()
	target, registered := c.consumers[consumer]
	c.consumersMu.RUnlock()
	switch {
	case !registered:
		result.Err = fmt.Errorf("%w: %s has no callback", vrfdomain.ErrInvalidConsumer, consumer)
	default:
		result.Err = target.RawFulfillRandomWords(ctx, requestID, words)
	}
	result.Success = result.Err == nil

	if result.Err != nil {
		span.RecordError(result.Err)
		c.logger.WarnContext(ctx, "Consumer rejected random words",
			attr.ExtractCorrelationID(ctx),
			attr.RequestID(strconv.FormatUint(requestID, 10)),
			attr.String("consumer", consumer),
			attr.Error(result.Err),
		)
	} else {
		c.logger.InfoContext(ctx, "Random words fulfilled",
			attr.ExtractCorrelationID(ctx),
			attr.RequestID(strconv.FormatUint(requestID, 10)),
			attr.String("consumer", consumer),
			attr.Amount("payment", payment),
		)
	}

	c.publish(ctx, vrfdomain.RandomWordsFulfilledV1, &vrfdomain.RandomWordsFulfilledPayloadV1{
		RequestID: strconv.FormatUint(requestID, 10),
		Consumer:  consumer,
		Words:     FormatWords(words),
		Payment:   payment.String(),
		Success:   result.Success,
	})
	return result, nil
}

// PendingRequests lists unfulfilled requests ordered by id.
func (c *Coordinator) PendingRequests(ctx context.Context) []vrfdomain.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]vrfdomain.Request, 0, len(c.requests))
	for _, r := range c.requests {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProvisionConfig mirrors the dev deployment: one subscription funded with
// FundAmount serving Consumer.
type ProvisionConfig struct {
	Owner      string
	Consumer   string
	FundAmount *big.Int
}

// Provision creates, funds and authorizes a subscription for cfg.Consumer.
func (c *Coordinator) Provision(ctx context.Context, cfg ProvisionConfig) (uint64, error) {
	subID, err := c.CreateSubscription(ctx, cfg.Owner)
	if err != nil {
		return 0, err
	}
	if cfg.FundAmount != nil && cfg.FundAmount.Sign() > 0 {
		if _, _, err := c.FundSubscription(ctx, subID, cfg.FundAmount); err != nil {
			return 0, err
		}
	}
	if err := c.AddConsumer(ctx, subID, cfg.Consumer); err != nil {
		return 0, err
	}
	return subID, nil
}

func (c *Coordinator) payment(callbackGasLimit uint32) *big.Int {
	gas := new(big.Int).SetUint64(uint64(callbackGasLimit))
	p := new(big.Int).Mul(c.cfg.GasPriceLink, gas)
	return p.Add(p, c.cfg.BaseFee)
}

func (c *Coordinator) publish(ctx context.Context, topic string, payload any) {
	if c.publisher == nil {
		return
	}
	if err := eventbus.PublishJSON(ctx, c.publisher, topic, payload); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish vrf event", attr.String("topic", topic), attr.Error(err))
	}
}

// DeriveWords returns keccak256(uint256(requestID) ++ uint256(i)) for each i.
func DeriveWords(requestID uint64, numWords uint32) []*big.Int {
	words := make([]*big.Int, numWords)
	for i := range words {
		var buf [64]byte
		binary.BigEndian.PutUint64(buf[24:32], requestID)
		binary.BigEndian.PutUint64(buf[56:64], uint64(i))
		h := sha3.NewLegacyKeccak256()
		h.Write(buf[:])
		words[i] = new(big.Int).SetBytes(h.Sum(nil))
	}
	return words
}

// FormatWords renders words as base-10 strings.
func FormatWords(words []*big.Int) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.String()
	}
	return out
}

// ParseWords is the inverse of FormatWords.
func ParseWords(in []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(in))
	for i, s := range in {
		w, ok := new(big.Int).SetString(s, 10)
		if !ok || w.Sign() < 0 {
			return nil, fmt.Errorf("invalid random word %q", s)
		}
		out[i] = w
	}
	return out, nil
}
