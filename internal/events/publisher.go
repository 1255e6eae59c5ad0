package events

import (
	"encoding/json"
	"fmt"

	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"

	"github.com/Murudula29/Dosemate/internal/domain"
)

const (
	// ExchangeName carries delivery outcomes for downstream consumers.
	ExchangeName = "dosemate.notifications"
	// RoutingKey for delivery events.
	RoutingKey = "delivery"
)

// Publisher publishes delivery events to RabbitMQ. Events are an audit feed,
// not part of the dispatch commitment: a publish failure is logged by the
// caller and never changes task state.
type Publisher struct {
	publisher *rabbitmq.Publisher
	strategy  retry.Strategy
}

// NewPublisher declares the exchange and creates a Publisher.
func NewPublisher(ch *rabbitmq.Channel, strategy retry.Strategy) (*Publisher, error) {
	exchange := rabbitmq.NewExchange(ExchangeName, "direct")
	if err := exchange.BindToChannel(ch); err != nil {
		return nil, fmt.Errorf("failed to declare delivery exchange: %w", err)
	}

	return &Publisher{
		publisher: rabbitmq.NewPublisher(ch, exchange.Name()),
		strategy:  strategy,
	}, nil
}

// PublishDelivery publishes one delivery event.
func (p *Publisher) PublishDelivery(event domain.DeliveryEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery event: %w", err)
	}

	return p.publisher.PublishWithRetry(body, RoutingKey, "application/json", p.strategy)
}
