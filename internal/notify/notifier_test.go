package notify

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-events/meridian-beo/internal/roles"
	"github.com/meridian-events/meridian-beo/jobs"
)

type fakeDirectory struct {
	members map[string][]roles.Member
	err     error
}

func (d *fakeDirectory) MembersOf(_ context.Context, role string) ([]roles.Member, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.members[role], nil
}

type fakeQueue struct {
	mu       sync.Mutex
	payloads []jobs.NotifyDeliverPayload
	err      error
}

func (q *fakeQueue) EnqueueNotifyDeliver(_ context.Context, p jobs.NotifyDeliverPayload) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, p)
	return nil
}

func (q *fakeQueue) emails() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.payloads))
	for _, p := range q.payloads {
		out = append(out, p.Email)
	}
	sort.Strings(out)
	return out
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestNotifySentToKanitTargetsSupervisors(t *testing.T) {
	dir := &fakeDirectory{members: map[string][]roles.Member{
		roles.RoleKanit: {
			{UserID: 1, Name: "Kanit A", Email: "a@example.com"},
			{UserID: 2, Name: "Kanit B", Email: "b@example.com"},
		},
	}}
	queue := &fakeQueue{}
	n := NewNotifier(dir, queue, testLogger(t))

	err := n.Notify(context.Background(), Event{
		Kind:      KindSentToKanit,
		OrderID:   9,
		OrderCode: "EVT-202609-0001",
		EventName: "Gala",
		ActorName: "Mira",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, queue.emails())
	assert.Contains(t, queue.payloads[0].Subject, "EVT-202609-0001")
}

func TestNotifyApprovedIncludesPICsDeduplicated(t *testing.T) {
	dir := &fakeDirectory{members: map[string][]roles.Member{
		roles.RoleSales: {
			{UserID: 10, Name: "Sales", Email: "sales@example.com"},
		},
	}}
	queue := &fakeQueue{}
	n := NewNotifier(dir, queue, testLogger(t))

	err := n.Notify(context.Background(), Event{
		Kind:      KindApproved,
		OrderID:   9,
		OrderCode: "EVT-202609-0001",
		PICs: []Recipient{
			{UserID: 10, Name: "Sales", Email: "sales@example.com"},
			{UserID: 11, Name: "Chef", Email: "chef@example.com"},
		},
	})
	require.NoError(t, err)
	// User 10 appears in both the sales role and the PIC list; one task.
	assert.Equal(t, []string{"chef@example.com", "sales@example.com"}, queue.emails())
}

func TestNotifyEmptyAudienceIsNotAnError(t *testing.T) {
	dir := &fakeDirectory{members: map[string][]roles.Member{}}
	queue := &fakeQueue{}
	n := NewNotifier(dir, queue, testLogger(t))

	err := n.Notify(context.Background(), Event{Kind: KindNeedsRevision, OrderID: 9})
	require.NoError(t, err)
	assert.Empty(t, queue.payloads)
}

func TestNotifyPropagatesDirectoryFailure(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("db down")}
	n := NewNotifier(dir, &fakeQueue{}, testLogger(t))

	err := n.Notify(context.Background(), Event{Kind: KindSentToKanit, OrderID: 9})
	assert.Error(t, err)
}

func TestNotifyUnknownKindFails(t *testing.T) {
	n := NewNotifier(&fakeDirectory{}, &fakeQueue{}, testLogger(t))

	err := n.Notify(context.Background(), Event{Kind: "BOGUS"})
	assert.Error(t, err)
}
