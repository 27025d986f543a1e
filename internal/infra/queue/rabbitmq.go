package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"activity-collector/internal/domain"
)

// RabbitCollectQueue реализует очередь задач сбора через AMQP.
type RabbitCollectQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// NewRabbitCollectQueue подключается к RabbitMQ и объявляет durable-очередь.
func NewRabbitCollectQueue(amqpURL, queue string) (*RabbitCollectQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("объявление очереди %s: %w", queue, err)
	}
	return &RabbitCollectQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitCollectQueue) Enqueue(ctx context.Context, job domain.CollectJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("сериализация задачи: %w", err)
	}
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("публикация задачи: %w", err)
	}
	return nil
}

// Receive возвращает следующую задачу и функцию подтверждения.
// ack(true) подтверждает задачу, ack(false) возвращает её в очередь.
func (q *RabbitCollectQueue) Receive(ctx context.Context) (domain.CollectJob, domain.Ack, error) {
	if q.deliveries == nil {
		if err := q.ch.Qos(1, 0, false); err != nil {
			return domain.CollectJob{}, nil, fmt.Errorf("настройка prefetch: %w", err)
		}
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.CollectJob{}, nil, fmt.Errorf("подписка на очередь: %w", err)
		}
		q.deliveries = deliveries
	}

	select {
	case <-ctx.Done():
		return domain.CollectJob{}, nil, ctx.Err()
	case delivery, ok := <-q.deliveries:
		if !ok {
			return domain.CollectJob{}, nil, errors.New("канал доставки закрыт")
		}
		var job domain.CollectJob
		if err := json.Unmarshal(delivery.Body, &job); err != nil {
			// Непригодное тело не вернётся в очередь: повтор бессмыслен.
			_ = delivery.Nack(false, false)
			return domain.CollectJob{}, nil, fmt.Errorf("разбор задачи: %w", err)
		}
		ack := func(ok bool) error {
			if ok {
				return delivery.Ack(false)
			}
			return delivery.Nack(false, true)
		}
		return job, ack, nil
	}
}

// Close закрывает канал и подключение.
func (q *RabbitCollectQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
