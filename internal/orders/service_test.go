package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-events/meridian-beo/internal/document"
	"github.com/meridian-events/meridian-beo/internal/notify"
	"github.com/meridian-events/meridian-beo/internal/platform/cache"
	"github.com/meridian-events/meridian-beo/internal/platform/storage"
	"github.com/meridian-events/meridian-beo/internal/shared"
)

// ============================================================================
// FAKES
// ============================================================================

// fakeRepo is an in-memory repository standing in for PostgreSQL.
type fakeRepo struct {
	mu     sync.Mutex
	orders map[int64]*Order
	files  map[int64]*BeoFile
	pics   map[int64][]PIC
	nextID int64
	seq    map[string]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders: make(map[int64]*Order),
		files:  make(map[int64]*BeoFile),
		pics:   make(map[int64][]PIC),
		seq:    make(map[string]int64),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &fakeTx{repo: f})
}

func (f *fakeRepo) GetOrder(_ context.Context, id int64) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *o
	if file, ok := f.files[id]; ok {
		fcp := *file
		cp.File = &fcp
	}
	return &cp, nil
}

func (f *fakeRepo) ListOrders(_ context.Context, flt ListOrdersFilter) ([]Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.orders {
		if flt.Status != "" && o.Status != flt.Status {
			continue
		}
		if flt.BeoStatus != "" && o.BeoStatus != flt.BeoStatus {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (f *fakeRepo) GetBeoPICs(_ context.Context, orderID int64) ([]PIC, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pics[orderID], nil
}

func (f *fakeRepo) GetBeoFile(_ context.Context, orderID int64) (*BeoFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *file
	return &cp, nil
}

func (f *fakeRepo) CreateBeoFile(_ context.Context, file BeoFile) (*BeoFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.files[file.OrderID]; exists {
		return nil, shared.ErrTransitionConflict
	}
	f.nextID++
	file.ID = f.nextID
	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	f.files[file.OrderID] = &file
	cp := file
	return &cp, nil
}

func (f *fakeRepo) UpdateBeoFileBinary(_ context.Context, id int64, expectedRegen, newRegen int, size int64, meta FileMetadata) (*BeoFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.ID != id {
			continue
		}
		if file.RegenerationCount != expectedRegen {
			return nil, shared.ErrTransitionConflict
		}
		file.RegenerationCount = newRegen
		file.FileSize = size
		file.Metadata = meta
		file.UpdatedAt = time.Now()
		cp := *file
		return &cp, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepo) AppendDownload(_ context.Context, fileID int64, rec DownloadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.ID == fileID {
			file.Metadata.Downloads = append(file.Metadata.Downloads, rec)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) AddOrderAttachment(_ context.Context, a OrderAttachment) (*OrderAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	o := f.orders[a.OrderID]
	o.Attachments = append(o.Attachments, a)
	return &a, nil
}

func (f *fakeRepo) GetOrderAttachment(_ context.Context, orderID, attachmentID int64) (*OrderAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	for _, a := range o.Attachments {
		if a.ID == attachmentID {
			return &a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepo) DeleteOrderAttachment(_ context.Context, orderID, attachmentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return shared.ErrNotFound
	}
	for i, a := range o.Attachments {
		if a.ID == attachmentID {
			o.Attachments = append(o.Attachments[:i], o.Attachments[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) AddBeoAttachment(_ context.Context, orderID int64, a BeoAttachment) (*BeoAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	for i := range o.Beos {
		if o.Beos[i].ID == a.BeoID {
			f.nextID++
			a.ID = f.nextID
			o.Beos[i].Attachments = append(o.Beos[i].Attachments, a)
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%w: beo %d does not belong to order %d", shared.ErrValidation, a.BeoID, orderID)
}

func (f *fakeRepo) AttachmentKeys(_ context.Context, orderID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	var keys []string
	for _, a := range o.Attachments {
		keys = append(keys, a.StorageKey)
	}
	for _, b := range o.Beos {
		for _, a := range b.Attachments {
			keys = append(keys, a.StorageKey)
		}
	}
	return keys, nil
}

type fakeTx struct {
	repo *fakeRepo
}

func (t *fakeTx) GenerateOrderCode(_ context.Context, date time.Time) (string, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	period := date.Format("200601")
	t.repo.seq[period]++
	return fmt.Sprintf("EVT-%s-%04d", period, t.repo.seq[period]), nil
}

func (t *fakeTx) GetOrderStatuses(_ context.Context, id int64) (OrderStatus, BeoStatus, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	o, ok := t.repo.orders[id]
	if !ok {
		return "", "", shared.ErrNotFound
	}
	return o.Status, o.BeoStatus, nil
}

func (t *fakeTx) InsertOrder(_ context.Context, o Order) (int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.nextID++
	o.ID = t.repo.nextID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	t.repo.orders[o.ID] = &o
	return o.ID, nil
}

func (t *fakeTx) UpdateOrderStatus(_ context.Context, id int64, from, to OrderStatus) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	o, ok := t.repo.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	if o.Status != from {
		return shared.ErrTransitionConflict
	}
	o.Status = to
	return nil
}

func (t *fakeTx) UpdateBeoStatus(_ context.Context, id int64, from []BeoStatus, to BeoStatus) (BeoStatus, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	o, ok := t.repo.orders[id]
	if !ok {
		return "", shared.ErrNotFound
	}
	for _, st := range from {
		if o.BeoStatus == st {
			prev := o.BeoStatus
			o.BeoStatus = to
			return prev, nil
		}
	}
	return "", shared.ErrTransitionConflict
}

func (t *fakeTx) ReplaceSchedules(_ context.Context, orderID int64, lines []ScheduleInput) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	o, ok := t.repo.orders[orderID]
	if !ok {
		return shared.ErrNotFound
	}
	var out []Schedule
	for _, in := range lines {
		id := in.ID
		if id == 0 {
			t.repo.nextID++
			id = t.repo.nextID
		}
		out = append(out, Schedule{
			ID: id, OrderID: orderID, Title: in.Title,
			Location: in.Location, StartsAt: in.StartsAt, EndsAt: in.EndsAt,
		})
	}
	o.Schedules = out
	return nil
}

func (t *fakeTx) ReplaceBeos(_ context.Context, orderID int64, inputs []BeoInput) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	o, ok := t.repo.orders[orderID]
	if !ok {
		return shared.ErrNotFound
	}
	var out []Beo
	for _, in := range inputs {
		id := in.ID
		if id == 0 {
			t.repo.nextID++
			id = t.repo.nextID
		}
		out = append(out, Beo{
			ID: id, OrderID: orderID, DepartmentID: in.DepartmentID,
			PackageID: in.PackageID, UserID: in.UserID, Notes: in.Notes,
		})
	}
	o.Beos = out
	return nil
}

func (t *fakeTx) DeleteOrder(_ context.Context, id int64) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if _, ok := t.repo.orders[id]; !ok {
		return shared.ErrNotFound
	}
	delete(t.repo.orders, id)
	delete(t.repo.files, id)
	return nil
}

// memStore is an in-memory blob store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = cp
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return data, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// fakeGenerator writes a stub blob and can be told to fail.
type fakeGenerator struct {
	store *memStore
	fail  bool
	calls int
}

func (g *fakeGenerator) Generate(ctx context.Context, doc document.OrderDocument) (document.Result, error) {
	g.calls++
	if g.fail {
		return document.Result{}, fmt.Errorf("%w: render exploded", shared.ErrGenerationFailure)
	}
	data := []byte("%PDF " + doc.OrderCode)
	if err := g.store.Put(ctx, doc.StorageKey, data); err != nil {
		return document.Result{}, err
	}
	return document.Result{
		StorageKey:  doc.StorageKey,
		SizeBytes:   int64(len(data)),
		Checksum:    "abc123",
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// fakeNotifier records every event.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *fakeNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) kinds() []notify.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.EventKind
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

// fakeRecorder records transition audit entries.
type fakeRecorder struct {
	mu   sync.Mutex
	logs []shared.TransitionLog
}

func (r *fakeRecorder) Record(_ context.Context, log shared.TransitionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

// fakeAuditor records entity-level audit entries.
type fakeAuditor struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *fakeAuditor) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type noopLock struct{}

func (noopLock) Lock(context.Context) error   { return nil }
func (noopLock) Unlock(context.Context) error { return nil }

// ============================================================================
// FIXTURE
// ============================================================================

type fixture struct {
	repo     *fakeRepo
	store    *memStore
	gen      *fakeGenerator
	notifier *fakeNotifier
	recorder *fakeRecorder
	auditor  *fakeAuditor
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	store := newMemStore()
	gen := &fakeGenerator{store: store}
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	auditor := &fakeAuditor{}
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	svc := NewService(repo, store, gen, notifier, recorder, auditor,
		func(string) Locker { return noopLock{} }, logger)
	return &fixture{repo: repo, store: store, gen: gen, notifier: notifier,
		recorder: recorder, auditor: auditor, service: svc}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func testContext() context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{
		UserID: 7, Name: "Mira Tan", IP: "10.0.0.9",
	})
}

func (fx *fixture) seedOrder(t *testing.T, beoStatus BeoStatus) int64 {
	t.Helper()
	order, err := fx.service.CreateOrder(testContext(), CreateOrderRequest{
		EventName:  "Annual Gala",
		CustomerID: 11,
		EventID:    3,
		StartDate:  time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	fx.repo.mu.Lock()
	fx.repo.orders[order.ID].BeoStatus = beoStatus
	fx.repo.orders[order.ID].CustomerName = "Acme Events"
	fx.repo.mu.Unlock()
	return order.ID
}

// approve runs the seeded order through approval and returns the file.
func (fx *fixture) approveOrder(t *testing.T, id int64) *BeoFile {
	t.Helper()
	resp, err := fx.service.Approve(testContext(), id)
	require.NoError(t, err)
	require.Empty(t, resp.Warning)
	require.NotNil(t, resp.File)
	return resp.File
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateOrderAssignsSequentialCode(t *testing.T) {
	fx := newFixture(t)
	ctx := testContext()

	req := CreateOrderRequest{
		EventName:  "Product Launch",
		CustomerID: 4,
		EventID:    1,
		StartDate:  time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 9, 21, 0, 0, 0, 0, time.UTC),
	}
	first, err := fx.service.CreateOrder(ctx, req)
	require.NoError(t, err)
	second, err := fx.service.CreateOrder(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "EVT-202609-0001", first.CustomCode)
	assert.Equal(t, "EVT-202609-0002", second.CustomCode)
	assert.Equal(t, OrderStatusNewInquiry, first.Status)
	assert.Equal(t, BeoStatusPlanning, first.BeoStatus)
	assert.Equal(t, int64(7), first.CreatedBy)
}

func TestConfirmOrderOnlyOnce(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusPlanning)

	resp, err := fx.service.ConfirmOrder(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, BeoStatusPlanning, resp.StatusBeo)

	_, err = fx.service.ConfirmOrder(testContext(), id)
	assert.ErrorIs(t, err, shared.ErrTransitionConflict)

	require.Len(t, fx.recorder.logs, 1)
	assert.Equal(t, shared.TransitionConfirm, fx.recorder.logs[0].Action)
	assert.False(t, fx.recorder.logs[0].At.IsZero())
}

func TestCreateAndDeleteAreAudited(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusPlanning)
	require.NoError(t, fx.service.DeleteOrder(testContext(), id))

	require.Len(t, fx.auditor.logs, 2)
	assert.Equal(t, "order.create", fx.auditor.logs[0].Action)
	assert.Equal(t, "order.delete", fx.auditor.logs[1].Action)
	for _, entry := range fx.auditor.logs {
		assert.Equal(t, int64(7), entry.ActorID)
		assert.Equal(t, "order", entry.Entity)
		assert.False(t, entry.At.IsZero())
	}
}

func TestSendToKanitTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    BeoStatus
		wantErr bool
	}{
		{"from planning", BeoStatusPlanning, false},
		{"from needs revision", BeoStatusNeedsRevision, false},
		{"from sent", BeoStatusSentToKanit, true},
		{"from approved", BeoStatusApproved, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t)
			id := fx.seedOrder(t, tc.from)

			resp, err := fx.service.SendToKanit(testContext(), id)
			if tc.wantErr {
				assert.ErrorIs(t, err, shared.ErrTransitionConflict)
				assert.Empty(t, fx.notifier.kinds())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, BeoStatusSentToKanit, resp.StatusBeo)
			assert.Equal(t, []notify.EventKind{notify.KindSentToKanit}, fx.notifier.kinds())
		})
	}
}

func TestApproveGeneratesDocument(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusSentToKanit)
	fx.repo.pics[id] = []PIC{{UserID: 21, Name: "Dewi", Email: "dewi@example.com"}}

	file := fx.approveOrder(t, id)

	assert.Regexp(t, `^BEO-[0-9A-F]{8}$`, file.FileCode)
	assert.Equal(t, 0, file.RegenerationCount)
	assert.Equal(t, "application/pdf", file.MimeType)
	assert.True(t, strings.HasPrefix(file.FilePath, "pdfs/orders/"))
	assert.Equal(t, document.TemplateVersion, file.Metadata.TemplateVersion)

	exists, err := fx.store.Exists(context.Background(), file.FilePath)
	require.NoError(t, err)
	assert.True(t, exists)

	order, err := fx.service.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, BeoStatusApproved, order.BeoStatus)

	require.Len(t, fx.notifier.events, 1)
	ev := fx.notifier.events[0]
	assert.Equal(t, notify.KindApproved, ev.Kind)
	require.Len(t, ev.PICs, 1)
	assert.Equal(t, "dewi@example.com", ev.PICs[0].Email)
}

func TestApproveSurvivesGenerationFailure(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusSentToKanit)
	fx.gen.fail = true

	resp, err := fx.service.Approve(testContext(), id)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Warning)
	assert.Nil(t, resp.File)

	// The approval committed and the file record was minted even though
	// the render failed; only the binary is missing.
	placeholder, err := fx.repo.GetBeoFile(context.Background(), id)
	require.NoError(t, err)
	assert.Regexp(t, `^BEO-[0-9A-F]{8}$`, placeholder.FileCode)
	assert.Zero(t, placeholder.FileSize)
	assert.True(t, placeholder.Metadata.GeneratedAt.IsZero())

	st, err := fx.service.PDFStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, BeoStatusApproved, st.StatusBeo)
	assert.True(t, st.HasBeoRecord)
	assert.Equal(t, placeholder.FileCode, st.FileCode)
	assert.False(t, st.HasPDFFile)
	assert.True(t, st.CanGeneratePDF)
	assert.True(t, st.NeedsRegeneration)

	_, err = fx.service.DownloadPDF(testContext(), id)
	assert.ErrorIs(t, err, shared.ErrNeedsRegeneration)

	// Explicit regeneration fills the minted record in place.
	fx.gen.fail = false
	file, err := fx.service.RegeneratePDF(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, placeholder.FileCode, file.FileCode)
	assert.Equal(t, placeholder.FilePath, file.FilePath)
	assert.Equal(t, 0, file.RegenerationCount)

	st, err = fx.service.PDFStatus(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, st.HasPDFFile)
	assert.False(t, st.NeedsRegeneration)
}

func TestRegenerateKeepsCodeAndPath(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusSentToKanit)
	first := fx.approveOrder(t, id)

	second, err := fx.service.RegeneratePDF(testContext(), id)
	require.NoError(t, err)

	assert.Equal(t, first.FileCode, second.FileCode)
	assert.Equal(t, first.FilePath, second.FilePath)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.RegenerationCount)
}

func TestRegenerateRequiresApproval(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusPlanning)

	_, err := fx.service.RegeneratePDF(testContext(), id)
	assert.ErrorIs(t, err, shared.ErrNotApproved)
}

func TestEditWhileApprovedReopensCycle(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusSentToKanit)
	file := fx.approveOrder(t, id)

	order, err := fx.service.UpdateSchedules(testContext(), id, UpdateSchedulesRequest{
		Schedules: []ScheduleInput{{
			Title:    "Load-in",
			Location: "Hall B",
			StartsAt: time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC),
			EndsAt:   time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, BeoStatusNeedsRevision, order.BeoStatus)

	// Binary deleted, record and code retained.
	exists, err := fx.store.Exists(context.Background(), file.FilePath)
	require.NoError(t, err)
	assert.False(t, exists)

	kept, err := fx.repo.GetBeoFile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, file.FileCode, kept.FileCode)

	assert.Contains(t, fx.notifier.kinds(), notify.KindNeedsRevision)

	var actions []shared.TransitionAction
	for _, l := range fx.recorder.logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, shared.TransitionReopen)
}

func TestEditBeforeApprovalDoesNotReopen(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusPlanning)

	order, err := fx.service.UpdateBeos(testContext(), id, UpdateBeosRequest{
		Beos: []BeoInput{{DepartmentID: 2, Notes: "Stage rigging"}},
	})
	require.NoError(t, err)
	assert.Equal(t, BeoStatusPlanning, order.BeoStatus)
	assert.Empty(t, fx.notifier.kinds())
}

func TestDownloadAppendsAuditEntry(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusSentToKanit)
	fx.approveOrder(t, id)

	dl, err := fx.service.DownloadPDF(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", dl.MimeType)
	assert.True(t, strings.HasSuffix(dl.Filename, ".pdf"))
	assert.NotEmpty(t, dl.Data)

	file, err := fx.repo.GetBeoFile(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, file.Metadata.Downloads, 1)
	rec := file.Metadata.Downloads[0]
	assert.Equal(t, int64(7), rec.UserID)
	assert.Equal(t, "Mira Tan", rec.DownloadedBy)
	assert.Equal(t, "10.0.0.9", rec.IPAddress)
}

func TestDownloadRequiresApproval(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusSentToKanit)

	_, err := fx.service.DownloadPDF(testContext(), id)
	assert.ErrorIs(t, err, shared.ErrNotApproved)
}

func TestDeleteOrderRemovesBlobs(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusSentToKanit)
	file := fx.approveOrder(t, id)

	att, err := fx.service.AddOrderAttachment(testContext(), id, "layout.png", []byte("img"))
	require.NoError(t, err)

	require.NoError(t, fx.service.DeleteOrder(testContext(), id))

	_, err = fx.service.GetOrder(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	for _, key := range []string{file.FilePath, att.StorageKey} {
		exists, eerr := fx.store.Exists(context.Background(), key)
		require.NoError(t, eerr)
		assert.False(t, exists, key)
	}
}

func TestAttachmentUploadWhileApprovedReopens(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusSentToKanit)
	fx.approveOrder(t, id)

	_, err := fx.service.AddOrderAttachment(testContext(), id, "notes.pdf", []byte("doc"))
	require.NoError(t, err)

	order, err := fx.service.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, BeoStatusNeedsRevision, order.BeoStatus)
}

type heldLock struct{}

func (heldLock) Lock(context.Context) error   { return cache.ErrLockHeld }
func (heldLock) Unlock(context.Context) error { return nil }

func TestGenerationLockContention(t *testing.T) {
	fx := newFixture(t)
	id := fx.seedOrder(t, BeoStatusSentToKanit)
	fx.approveOrder(t, id)

	fx.service.locks = func(string) Locker { return heldLock{} }
	_, err := fx.service.RegeneratePDF(testContext(), id)
	assert.ErrorIs(t, err, shared.ErrTransitionConflict)
}
