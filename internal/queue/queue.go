// Package queue is the round-scoped evaluation-task fan-out queue between
// the tournament orchestrator (producer) and the evaluation worker pool
// (consumers).
//
// Adapted from codepr-narwhal's agent/message_queue.go AmqpQueue: same
// Produce/Consume shape and streadway/amqp dependency, generalized from a
// single untyped commit-event queue to a typed evaluation-task queue, and
// fixed to dial q.url (not q.queue, a bug in the original) on both ends.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// Task is one evaluation unit dispatched to a worker.
type Task struct {
	SubmissionID   string `json:"submission_id"`
	TournamentID   string `json:"tournament_id"`
	ParticipantKey string `json:"participant_key"`
	RepoURL        string `json:"repo_url"`
	CommitRef      string `json:"commit_ref"`
	Round          int    `json:"round"`
	Network        string `json:"network"`
	TestDate       string `json:"test_date"`
}

// AmqpQueue is a durable, named queue carrying Task messages.
type AmqpQueue struct {
	url, name string
	durable   bool
}

func NewAmqpQueue(url, name string) *AmqpQueue {
	return &AmqpQueue{url: url, name: name, durable: true}
}

func (q *AmqpQueue) Produce(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	declared, err := ch.QueueDeclare(q.name, q.durable, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declaring queue: %w", err)
	}

	return ch.Publish("", declared.Name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Consume drains the queue, invoking handle for each task, until ctx is
// canceled. Handler errors are discarded here (the handler logs its own
// failures) and a message that fails to decode is skipped; Consume never
// stops on a single handler failure.
func (q *AmqpQueue) Consume(ctx context.Context, handle func(Task) error) error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	declared, err := ch.QueueDeclare(q.name, q.durable, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declaring queue: %w", err)
	}

	msgs, err := ch.Consume(declared.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("registering consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed")
			}
			var task Task
			if err := json.Unmarshal(d.Body, &task); err != nil {
				continue
			}
			_ = handle(task)
		}
	}
}
