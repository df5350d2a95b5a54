package notify

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSender publishes notifications onto a durable queue consumed by a
// separate push worker. Retries beyond this single publish are the worker's
// responsibility, outside this core.
type AMQPSender struct {
	conn  *amqp.Connection
	chn   *amqp.Channel
	queue string
}

func NewAMQPSender(url, queue string) (*AMQPSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := chn.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = chn.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPSender{conn: conn, chn: chn, queue: queue}, nil
}

func (s *AMQPSender) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.chn.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (s *AMQPSender) Close() error {
	if err := s.chn.Close(); err != nil {
		return err
	}
	return s.conn.Close()
}
