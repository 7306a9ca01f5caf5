// Package notify publishes task status events when a task reaches a
// terminal state.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const routingKey = "task.status"

// Event is the status message sent for a finished task.
type Event struct {
	TaskID     string    `json:"task_id"`
	SourceURL  string    `json:"source_url"`
	State      string    `json:"state"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	FrameCount int       `json:"frame_count,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher sends events to a topic exchange.
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "connect to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open publisher channel")
	}

	p, err := NewRabbitPublisher(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewRabbitPublisher(ch Channel, exchange string) (*RabbitPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	return &RabbitPublisher{channel: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    event.TaskID,
		},
	)
	if err != nil {
		return errors.Wrap(err, "publish status event")
	}

	logrus.WithFields(logrus.Fields{
		"task_id": event.TaskID,
		"state":   event.State,
	}).Debug("Status event published")
	return nil
}

func (p *RabbitPublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
