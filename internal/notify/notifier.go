// Package notify fans workflow transition events out to role-based
// audiences. Delivery itself happens on the asynq worker; the HTTP
// request only enqueues.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-events/meridian-beo/internal/roles"
	"github.com/meridian-events/meridian-beo/jobs"
)

// EventKind enumerates workflow transitions that produce notifications.
type EventKind string

const (
	// KindSentToKanit fires when sales hands the order to the supervisor.
	KindSentToKanit EventKind = "SENT_TO_KANIT"
	// KindApproved fires when the supervisor approves.
	KindApproved EventKind = "APPROVED"
	// KindNeedsRevision fires when a post-approval edit reopens the cycle.
	KindNeedsRevision EventKind = "NEEDS_REVISION"
)

// Recipient is one notification target.
type Recipient struct {
	UserID int64
	Name   string
	Email  string
}

// Event carries everything needed to compute the audience and render
// the message.
type Event struct {
	Kind          EventKind
	OrderID       int64
	OrderCode     string
	EventName     string
	ActorID       int64
	ActorName     string
	ChangedFields []string
	// PICs are the distinct users assigned to the order's BEOs; they are
	// part of the approval audience.
	PICs []Recipient
}

// directory resolves a role name to its member set.
type directory interface {
	MembersOf(ctx context.Context, role string) ([]roles.Member, error)
}

// enqueuer submits delivery tasks to the queue.
type enqueuer interface {
	EnqueueNotifyDeliver(ctx context.Context, payload jobs.NotifyDeliverPayload) error
}

// Notifier computes audiences and enqueues delivery tasks.
type Notifier struct {
	directory directory
	queue     enqueuer
	logger    *slog.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(dir directory, queue enqueuer, logger *slog.Logger) *Notifier {
	return &Notifier{directory: dir, queue: queue, logger: logger}
}

// Notify resolves the audience for ev and enqueues one delivery task per
// recipient. An empty audience is logged, never an error; the caller's
// transition has already committed and always proceeds.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	recipients, err := n.audience(ctx, ev)
	if err != nil {
		return fmt.Errorf("notify: resolve audience: %w", err)
	}
	if len(recipients) == 0 {
		n.logger.Info("notification audience empty",
			slog.String("kind", string(ev.Kind)),
			slog.Int64("order_id", ev.OrderID))
		return nil
	}

	subject, body := render(ev)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, rcpt := range recipients {
		g.Go(func() error {
			return n.queue.EnqueueNotifyDeliver(gctx, jobs.NotifyDeliverPayload{
				UserID:    rcpt.UserID,
				Email:     rcpt.Email,
				Subject:   subject,
				Body:      body,
				OrderID:   ev.OrderID,
				OrderCode: ev.OrderCode,
				Kind:      string(ev.Kind),
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	n.logger.Info("notifications enqueued",
		slog.String("kind", string(ev.Kind)),
		slog.Int64("order_id", ev.OrderID),
		slog.Int("recipients", len(recipients)))
	return nil
}

// audience implements the recipient policy: supervisor notifications go
// to the kanit role; approval notifications go to the sales role plus
// the order's assigned PICs, deduplicated by user id.
func (n *Notifier) audience(ctx context.Context, ev Event) ([]Recipient, error) {
	switch ev.Kind {
	case KindSentToKanit, KindNeedsRevision:
		members, err := n.directory.MembersOf(ctx, roles.RoleKanit)
		if err != nil {
			return nil, err
		}
		return dedupe(fromMembers(members)), nil
	case KindApproved:
		members, err := n.directory.MembersOf(ctx, roles.RoleSales)
		if err != nil {
			return nil, err
		}
		return dedupe(append(fromMembers(members), ev.PICs...)), nil
	default:
		return nil, fmt.Errorf("notify: unknown event kind %q", ev.Kind)
	}
}

func fromMembers(members []roles.Member) []Recipient {
	out := make([]Recipient, 0, len(members))
	for _, m := range members {
		out = append(out, Recipient{UserID: m.UserID, Name: m.Name, Email: m.Email})
	}
	return out
}

func dedupe(in []Recipient) []Recipient {
	seen := make(map[int64]struct{}, len(in))
	out := in[:0]
	for _, r := range in {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func render(ev Event) (subject, body string) {
	switch ev.Kind {
	case KindSentToKanit:
		subject = fmt.Sprintf("BEO %s awaiting review", ev.OrderCode)
		body = fmt.Sprintf("%s sent the execution documents for %q (%s) for review.",
			ev.ActorName, ev.EventName, ev.OrderCode)
	case KindApproved:
		subject = fmt.Sprintf("BEO %s approved", ev.OrderCode)
		body = fmt.Sprintf("%s approved the execution documents for %q (%s). The PDF is ready for download.",
			ev.ActorName, ev.EventName, ev.OrderCode)
	case KindNeedsRevision:
		subject = fmt.Sprintf("BEO %s reopened", ev.OrderCode)
		body = fmt.Sprintf("%s edited %q (%s) after approval; the documents need another review.",
			ev.ActorName, ev.EventName, ev.OrderCode)
		if len(ev.ChangedFields) > 0 {
			body += fmt.Sprintf(" Changed: %v.", ev.ChangedFields)
		}
	}
	return subject, body
}
