// Package jobs defines the asynq task types and the background worker.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyDeliver delivers one workflow notification to one recipient.
	TaskNotifyDeliver = "notify:deliver"
	// TaskDocumentsSweep removes orphaned PDF binaries.
	TaskDocumentsSweep = "documents:sweep"
)

// NotifyDeliverPayload describes one notification delivery.
type NotifyDeliverPayload struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	Kind      string `json:"kind"`
}

// NewNotifyDeliverTask constructs an Asynq task for one delivery.
func NewNotifyDeliverTask(payload NotifyDeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyDeliver, data), nil
}

// NewDocumentsSweepTask constructs the nightly orphan sweep task.
func NewDocumentsSweepTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskDocumentsSweep, nil), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueNotifyDeliver enqueues a single notification delivery.
func (c *Client) EnqueueNotifyDeliver(ctx context.Context, payload NotifyDeliverPayload) error {
	task, err := NewNotifyDeliverTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
