package poller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "checkout-outbox"

// CartClearer empties the customer's cart once their checkout completed.
type CartClearer interface {
	ClearCart(ctx context.Context) (service.View, error)
}

// CheckoutEvent is the part of the checkout outbox payload the storefront reads.
type CheckoutEvent struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

type Poller struct {
	cart   CartClearer
	reader *kafka.Reader
	userID string
}

// NewPoller consumes topic and clears the cart for events of userID. An empty userID
// accepts every event.
func NewPoller(cart CartClearer, userID, topic, groupID string, brokers ...string) *Poller {
	if topic == "" {
		topic = DefaultTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{cart: cart, reader: reader, userID: userID}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.readAndClear(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log().Error().Err(err).Msg("error closing reader")
	}
}

func (p *Poller) readAndClear(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.log().Error().Err(err).Msg("error reading message")
		}
		return
	}
	p.handle(ctx, m.Value)
}

// handle reports whether the cart was cleared.
func (p *Poller) handle(ctx context.Context, value []byte) bool {
	var event CheckoutEvent
	if err := json.Unmarshal(value, &event); err != nil {
		p.log().Warn().Err(err).Msg("error parsing message")
		return false
	}
	if event.UserID == "" {
		p.log().Warn().Str("checkout_id", event.CheckoutID).Msg("missing user_id")
		return false
	}
	if p.userID != "" && event.UserID != p.userID {
		return false
	}

	if _, err := p.cart.ClearCart(ctx); err != nil {
		p.log().Error().Err(err).Str("checkout_id", event.CheckoutID).Msg("failed to clear cart")
		return false
	}
	p.log().Info().Str("checkout_id", event.CheckoutID).Msg("cart cleared after checkout")
	return true
}

func (p *Poller) log() *zerolog.Logger {
	l := zlog.With().Str("component", "poller").Logger()
	return &l
}
