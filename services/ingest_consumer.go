package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"storefront-gateway/models"
	awspkg "storefront-gateway/pkg/aws"

	"go.uber.org/zap"
)

// QueuePoller delivers queue message bodies to a handler until ctx ends.
type QueuePoller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// IngestConsumer applies queued writes through the same operations as the
// HTTP routes.
type IngestConsumer struct {
	poller  QueuePoller
	service DocumentService
	logger  *zap.Logger
}

// NewIngestConsumer creates a new IngestConsumer.
func NewIngestConsumer(poller QueuePoller, service DocumentService, logger *zap.Logger) *IngestConsumer {
	return &IngestConsumer{poller: poller, service: service, logger: logger}
}

// Start blocks until ctx is cancelled.
func (c *IngestConsumer) Start(ctx context.Context) error {
	return c.poller.StartPolling(ctx, c.HandleMessage)
}

// HandleMessage applies one message. Malformed messages, payloads the route
// cannot store and unknown routes are dropped by returning nil; database
// failures are returned so the message is redelivered.
func (c *IngestConsumer) HandleMessage(ctx context.Context, body string) error {
	var msg models.IngestMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		c.logger.Warn("Dropping undecodable ingest message", zap.Error(err))
		return nil
	}

	payload := bytes.TrimSpace(msg.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = []byte("{}")
	}
	if payload[0] != '{' && payload[0] != '[' {
		c.logger.Warn("Dropping ingest message with scalar payload", zap.String("route", msg.Route))
		return nil
	}

	if msg.Route == models.ShoppingCartRoute {
		_, err := c.service.CreateCart(ctx, payload)
		return c.retryable(msg.Route, err)
	}

	binding, ok := models.BindingForRoute(msg.Route)
	if !ok {
		c.logger.Warn("Dropping ingest message for unknown route", zap.String("route", msg.Route))
		return nil
	}

	res, err := c.service.Upsert(ctx, binding, payload)
	if err != nil {
		return c.retryable(msg.Route, err)
	}
	c.logger.Debug("Ingest message applied", zap.String("route", msg.Route), zap.Bool("created", res.Created))
	return nil
}

// retryable drops payload errors, which would fail on every redelivery.
func (c *IngestConsumer) retryable(route string, err error) error {
	if errors.Is(err, ErrUndecodablePayload) {
		c.logger.Warn("Dropping ingest message with undecodable payload", zap.String("route", route), zap.Error(err))
		return nil
	}
	return err
}
