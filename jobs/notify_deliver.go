package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"
)

// NotifyDeliverJob hands one notification to the SMTP relay.
type NotifyDeliverJob struct {
	Host   string
	Port   int
	From   string
	Logger *slog.Logger

	// send allows tests to intercept the SMTP call.
	send func(addr, from string, to []string, msg []byte) error
}

// NewNotifyDeliverJob wires the delivery handler.
func NewNotifyDeliverJob(host string, port int, from string, logger *slog.Logger) *NotifyDeliverJob {
	return &NotifyDeliverJob{
		Host:   host,
		Port:   port,
		From:   from,
		Logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Handle processes TaskNotifyDeliver tasks.
func (j *NotifyDeliverJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("notify deliver: handler not configured")
	}
	var payload NotifyDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Email == "" {
		j.Logger.Warn("notification recipient has no email",
			slog.Int64("user_id", payload.UserID),
			slog.String("order_code", payload.OrderCode))
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		j.From, payload.Email, payload.Subject, payload.Body)
	addr := fmt.Sprintf("%s:%d", j.Host, j.Port)
	if err := j.send(addr, j.From, []string{payload.Email}, []byte(msg)); err != nil {
		j.Logger.Error("deliver notification",
			slog.String("email", payload.Email),
			slog.String("kind", payload.Kind),
			slog.Any("error", err))
		return err
	}
	j.Logger.Info("notification delivered",
		slog.String("email", payload.Email),
		slog.String("order_code", payload.OrderCode),
		slog.String("kind", payload.Kind))
	return nil
}
