package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

// RetryCountHeader tracks how many times a task has been requeued before the
// worker gives up and dead-letters it.
const RetryCountHeader = "x-retry-count"

// Publisher is the dispatcher's view of the delivery queue.
type Publisher interface {
	PublishTask(task model.RecipientTask) error
}

// AMQPQueue owns the RabbitMQ connection for one process. The task queue
// carries one JSON message per recipient; the dead queue receives tasks that
// exhausted their redeliveries.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  config.QueueConfig
}

func NewAMQP(cfg config.QueueConfig) (*AMQPQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, name := range []string{cfg.TaskQueue, cfg.DeadQueue} {
		if _, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	return &AMQPQueue{conn: conn, ch: ch, cfg: cfg}, nil
}

func (q *AMQPQueue) PublishTask(task model.RecipientTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		q.cfg.TaskQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// PublishDead moves a poisoned task body to the dead letter queue.
func (q *AMQPQueue) PublishDead(body []byte, retries int) error {
	return q.ch.Publish(
		"",
		q.cfg.DeadQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Headers:     amqp.Table{RetryCountHeader: int32(retries)},
			Body:        body,
		},
	)
}

// Requeue republishes a task with its retry count bumped. Used instead of a
// bare Nack so the redelivery count survives round trips through the broker.
func (q *AMQPQueue) Requeue(body []byte, retries int) error {
	return q.ch.Publish(
		"",
		q.cfg.TaskQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{RetryCountHeader: int32(retries)},
			Body:         body,
		},
	)
}

// Consume registers a manual-ack consumer on the task queue.
func (q *AMQPQueue) Consume() (<-chan amqp.Delivery, error) {
	return q.ch.Consume(
		q.cfg.TaskQueue,
		"",
		false, // autoAck off, the worker acks after processing
		false,
		false,
		false,
		nil,
	)
}

func (q *AMQPQueue) Close() {
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}

// RetryCount reads the redelivery counter from a delivery's headers.
func RetryCount(d amqp.Delivery) int {
	if d.Headers == nil {
		return 0
	}
	switch v := d.Headers[RetryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

var _ Publisher = (*AMQPQueue)(nil)

// InMemoryQueue is a channel-backed Publisher for tests and local runs
// without a broker.
type InMemoryQueue struct {
	mu    sync.Mutex
	Tasks []model.RecipientTask
	// FailAfter, when > 0, fails every publish after that many successes.
	// Exercises the dispatcher's partial-enqueue accounting.
	FailAfter int
}

func (q *InMemoryQueue) PublishTask(task model.RecipientTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailAfter > 0 && len(q.Tasks) >= q.FailAfter {
		return fmt.Errorf("publish failed: queue unavailable")
	}
	q.Tasks = append(q.Tasks, task)
	return nil
}

var _ Publisher = (*InMemoryQueue)(nil)
