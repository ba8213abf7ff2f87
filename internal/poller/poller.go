package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTopic   = "order-placed"
	DefaultGroupID = "cart-server-consumer"
)

// MessageReader is the subset of *kafka.Reader the poller uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CartClearer empties a user's cart, including any cached copy.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type orderPlaced struct {
	UserID string `json:"user_id"`
}

// Poller empties the cart of every user who placed an order.
type Poller struct {
	reader     MessageReader
	carts      CartClearer
	log        logrus.FieldLogger
	retryDelay time.Duration
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewPoller(reader MessageReader, carts CartClearer, log logrus.FieldLogger) *Poller {
	return &Poller{
		reader:     reader,
		carts:      carts,
		log:        log.WithField("component", "poller"),
		retryDelay: time.Second,
	}
}

// Run consumes messages until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.getMessageAndEmptyCart(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).Warn("error reading message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryDelay):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.WithError(err).Warn("error closing reader")
	}
}

// getMessageAndEmptyCart returns an error only when reading fails; bad payloads are logged and skipped.
func (p *Poller) getMessageAndEmptyCart(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}

	log := p.log.WithFields(logrus.Fields{
		"topic":     m.Topic,
		"partition": m.Partition,
		"offset":    m.Offset,
	})

	var payload orderPlaced
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		log.WithError(err).Warn("error parsing message")
		return nil
	}
	if payload.UserID == "" {
		log.Warn("missing or invalid user_id")
		return nil
	}

	if err := p.carts.ClearCart(ctx, payload.UserID); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.WithError(err).WithField("user_id", payload.UserID).Error("failed to empty cart")
		}
		return nil
	}
	log.WithField("user_id", payload.UserID).Info("cart emptied after order")
	return nil
}
