// Package tasks provides the Redis Streams queue that feeds posting tasks to
// workers. Producers enqueue a platform/task-type pair plus variables; a
// worker picks the task up through a consumer group and runs the matching
// active workflow.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/xjanova/postxagent/pkg/models"
)

const (
	// DefaultStream is the stream posting tasks are published on.
	DefaultStream = "postx:tasks"

	// DefaultGroup is the worker consumer group.
	DefaultGroup = "postx-workers"

	// DefaultReclaimIdle is the minimum idle time before a pending delivery
	// from a failed or dead consumer is claimed for redelivery.
	DefaultReclaimIdle = time.Minute

	readBlock    = time.Second
	reclaimCount = 16
	payload      = "payload"
)

// PostTask is one unit of work: run the active workflow for the platform and
// task type with the given variables. Credential variables are supplied by
// the worker at execution time, never carried on the task.
type PostTask struct {
	ID         string           `json:"id"`
	Platform   string           `json:"platform"   validate:"required"`
	TaskType   string           `json:"task_type"  validate:"required"`
	Variables  models.Variables `json:"variables,omitempty"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}

// Handler processes one dequeued task. A nil return acknowledges the message;
// an error leaves it pending, and the entry is claimed for redelivery once it
// has been idle for ReclaimIdle.
type Handler func(ctx context.Context, task PostTask) error

// Queue is a Redis Streams task queue with consumer-group delivery, so a task
// is processed by exactly one worker of the group.
type Queue struct {
	// ReclaimIdle is the minimum idle time before a pending delivery is
	// claimed away from its original consumer. Set before Start.
	ReclaimIdle time.Duration

	client   redis.UniversalClient
	stream   string
	group    string
	consumer string
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewQueue(ctx context.Context, redisURL, stream, group, consumer string, logger *slog.Logger) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewQueueWithClient(ctx, client, stream, group, consumer, logger)
}

// NewQueueWithClient wires the queue onto an existing client, mainly for
// tests running against miniature or shared instances.
func NewQueueWithClient(
	ctx context.Context,
	client redis.UniversalClient,
	stream, group, consumer string,
	logger *slog.Logger,
) (*Queue, error) {
	if stream == "" {
		stream = DefaultStream
	}

	if group == "" {
		group = DefaultGroup
	}

	if consumer == "" {
		consumer = uuid.New().String()
	}

	queue := &Queue{
		ReclaimIdle: DefaultReclaimIdle,

		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		stopCh:   make(chan struct{}),
		logger: logger.With(
			"module", "task_queue",
			"stream", stream,
			"group", group,
		),
	}

	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return queue, nil
}

// Enqueue publishes a task and returns its ID.
func (q *Queue) Enqueue(ctx context.Context, task PostTask) (string, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task: %w", err)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{payload: string(data)},
	}).Err()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.InfoContext(ctx, "Enqueued task",
		"task_id", task.ID, "platform", task.Platform, "task_type", task.TaskType)

	return task.ID, nil
}

// Start launches the consumer loop. Messages are acknowledged only after the
// handler returns nil; failed deliveries stay pending and are re-claimed for
// another attempt after ReclaimIdle.
func (q *Queue) Start(ctx context.Context, handler Handler) {
	q.wg.Add(1)

	go q.consume(ctx, handler)
}

func (q *Queue) consume(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	q.logger.InfoContext(ctx, "Starting task consumer", "consumer", q.consumer)

	for {
		select {
		case <-q.stopCh:
			q.logger.InfoContext(ctx, "Task consumer stopped")

			return
		case <-ctx.Done():
			q.logger.InfoContext(ctx, "Context cancelled, stopping task consumer")

			return
		default:
			if err := q.reclaim(ctx, handler); err != nil {
				q.logger.ErrorContext(ctx, "Error reclaiming pending tasks", "error", err)
			}

			if err := q.readOne(ctx, handler); err != nil {
				q.logger.ErrorContext(ctx, "Error processing task", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

// reclaim claims pending deliveries whose consumer has not acknowledged them
// within ReclaimIdle and runs them through the handler again. Without this a
// delivery whose handler failed, or whose consumer died, would sit in the
// pending entries list forever.
func (q *Queue) reclaim(ctx context.Context, handler Handler) error {
	messages, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.ReclaimIdle,
		Start:    "0-0",
		Count:    reclaimCount,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to claim pending tasks: %w", err)
	}

	for _, message := range messages {
		if err := q.handleMessage(ctx, handler, message); err != nil {
			return err
		}
	}

	return nil
}

func (q *Queue) readOne(ctx context.Context, handler Handler) error {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    readBlock,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := q.handleMessage(ctx, handler, message); err != nil {
				return err
			}
		}
	}

	return nil
}

func (q *Queue) handleMessage(ctx context.Context, handler Handler, message redis.XMessage) error {
	raw, ok := message.Values[payload].(string)
	if !ok {
		// Malformed entries are acknowledged so they cannot wedge the group.
		q.logger.WarnContext(ctx, "Dropping message without payload", "message_id", message.ID)

		return q.client.XAck(ctx, q.stream, q.group, message.ID).Err()
	}

	var task PostTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		q.logger.WarnContext(ctx, "Dropping undecodable task",
			"message_id", message.ID, "error", err)

		return q.client.XAck(ctx, q.stream, q.group, message.ID).Err()
	}

	if err := handler(ctx, task); err != nil {
		return fmt.Errorf("task %s failed: %w", task.ID, err)
	}

	return q.client.XAck(ctx, q.stream, q.group, message.ID).Err()
}

// Stop halts the consumer loop and closes the connection.
func (q *Queue) Stop(ctx context.Context) error {
	close(q.stopCh)
	q.wg.Wait()

	if q.client != nil {
		if err := q.client.Close(); err != nil {
			q.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
