package events

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange order events are published to. Routing
// key is the event type, so consumers can bind e.g. "order.*".
const ExchangeName = "storefront.events"

// AMQPPublisher delivers events to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	ch *amqp.Channel
}

var _ Publisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher declares the events exchange on the given channel and
// returns a publisher bound to it.
func NewAMQPPublisher(ch *amqp.Channel) (*AMQPPublisher, error) {
	err := ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, errors.Wrap(err, "declare events exchange")
	}
	return &AMQPPublisher{ch: ch}, nil
}

// Publish serializes the event to JSON and publishes it with the event type
// as the routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		ev.Type, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "publish %s", ev.Type)
	}
	return nil
}
