package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-events/meridian-beo/internal/document"
	"github.com/meridian-events/meridian-beo/internal/notify"
	"github.com/meridian-events/meridian-beo/internal/platform/cache"
	"github.com/meridian-events/meridian-beo/internal/platform/storage"
	"github.com/meridian-events/meridian-beo/internal/shared"
)

// repository is the persistence surface the service depends on. The
// concrete *Repository satisfies it; tests substitute a mock.
type repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context, f ListOrdersFilter) ([]Order, int64, error)
	GetBeoPICs(ctx context.Context, orderID int64) ([]PIC, error)
	GetBeoFile(ctx context.Context, orderID int64) (*BeoFile, error)
	CreateBeoFile(ctx context.Context, f BeoFile) (*BeoFile, error)
	UpdateBeoFileBinary(ctx context.Context, id int64, expectedRegen, newRegen int, size int64, meta FileMetadata) (*BeoFile, error)
	AppendDownload(ctx context.Context, fileID int64, rec DownloadRecord) error
	AddOrderAttachment(ctx context.Context, a OrderAttachment) (*OrderAttachment, error)
	GetOrderAttachment(ctx context.Context, orderID, attachmentID int64) (*OrderAttachment, error)
	DeleteOrderAttachment(ctx context.Context, orderID, attachmentID int64) error
	AddBeoAttachment(ctx context.Context, orderID int64, a BeoAttachment) (*BeoAttachment, error)
	AttachmentKeys(ctx context.Context, orderID int64) ([]string, error)
}

// generator produces and persists the order document.
type generator interface {
	Generate(ctx context.Context, doc document.OrderDocument) (document.Result, error)
}

// notifier fans a transition event out to its audience.
type notifier interface {
	Notify(ctx context.Context, ev notify.Event) error
}

// transitionRecorder persists the workflow audit trail.
type transitionRecorder interface {
	Record(ctx context.Context, log shared.TransitionLog) error
}

// auditLogger persists entity-level audit entries.
type auditLogger interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Locker serialises document generation across processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// LockFactory mints a Locker for a key.
type LockFactory func(key string) Locker

// RedisLockFactory builds lockers backed by a redis SETNX mutex. A nil
// client yields no-op locks, leaving only in-process serialisation.
func RedisLockFactory(client *redis.Client, ttl time.Duration) LockFactory {
	return func(key string) Locker {
		return cache.NewMutex(client, key, ttl)
	}
}

// Service implements the booking workflow.
type Service struct {
	repo        repository
	store       storage.Store
	generator   generator
	notifier    notifier
	transitions transitionRecorder
	audit       auditLogger
	logger      *slog.Logger
	locks       LockFactory

	genGroup singleflight.Group
	now      func() time.Time
}

// NewService constructs the workflow service.
func NewService(
	repo repository,
	store storage.Store,
	gen generator,
	notif notifier,
	transitions transitionRecorder,
	audit auditLogger,
	locks LockFactory,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:        repo,
		store:       store,
		generator:   gen,
		notifier:    notif,
		transitions: transitions,
		audit:       audit,
		logger:      logger,
		locks:       locks,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// auditRecord writes an entity audit entry, logging failures.
func (s *Service) auditRecord(ctx context.Context, actor shared.Actor, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit write failed",
			slog.Int64("order_id", orderID), slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

// ============================================================================
// CRUD
// ============================================================================

// CreateOrder registers a new inquiry. The custom code is minted inside
// the same transaction as the insert and never changes afterwards.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	actor, _ := shared.ActorFromContext(ctx)

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		code, err := tx.GenerateOrderCode(ctx, req.StartDate)
		if err != nil {
			return fmt.Errorf("generate order code: %w", err)
		}
		id, err = tx.InsertOrder(ctx, Order{
			CustomCode: code,
			EventName:  req.EventName,
			CustomerID: req.CustomerID,
			EventID:    req.EventID,
			Discount:   req.Discount,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			Status:     OrderStatusNewInquiry,
			BeoStatus:  BeoStatusPlanning,
			CreatedBy:  actor.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.auditRecord(ctx, actor, "order.create", id, map[string]any{"event_name": req.EventName})
	return s.repo.GetOrder(ctx, id)
}

// GetOrder fetches one order with its full detail.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListResult is one page of the order listing.
type ListResult struct {
	Orders     []Order           `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

// ListOrders returns a filtered page.
func (s *Service) ListOrders(ctx context.Context, f ListOrdersFilter) (*ListResult, error) {
	items, total, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	perPage := f.Limit
	if perPage <= 0 {
		perPage = 50
	}
	page := f.Offset/perPage + 1
	return &ListResult{
		Orders:     items,
		Pagination: shared.NewPagination(page, perPage, int(total)),
	}, nil
}

// DeleteOrder removes the order and every blob it owns: the generated
// PDF plus all attachments. The database rows cascade; blobs are
// deleted afterwards so a failed delete leaves rows intact.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	actor, _ := shared.ActorFromContext(ctx)
	keys, err := s.repo.AttachmentKeys(ctx, id)
	if err != nil {
		return err
	}
	file, err := s.repo.GetBeoFile(ctx, id)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if file != nil {
		keys = append(keys, file.FilePath)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn("orphaned blob after order delete",
				slog.Int64("order_id", id), slog.String("key", key),
				slog.String("error", derr.Error()))
		}
	}
	s.auditRecord(ctx, actor, "order.delete", id, nil)
	return nil
}

// ============================================================================
// WORKFLOW TRANSITIONS
// ============================================================================

// ConfirmOrder moves the inquiry axis NEW_INQUIRY to CONFIRMED. Any
// other starting state is a conflict, including re-confirmation.
func (s *Service) ConfirmOrder(ctx context.Context, id int64) (*TransitionResponse, error) {
	actor, _ := shared.ActorFromContext(ctx)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrderStatus(ctx, id, OrderStatusNewInquiry, OrderStatusConfirmed)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, id, actor, shared.TransitionConfirm, "")

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TransitionResponse{OrderID: id, StatusBeo: order.BeoStatus}, nil
}

// SendToKanit hands the execution documents to the supervisor role.
// Valid from PLANNING and NEEDS_REVISION only.
func (s *Service) SendToKanit(ctx context.Context, id int64) (*TransitionResponse, error) {
	actor, _ := shared.ActorFromContext(ctx)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.UpdateBeoStatus(ctx, id, beoSendSources, BeoStatusSentToKanit)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, id, actor, shared.TransitionSend, "")

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.KindSentToKanit, order, actor, nil)
	return &TransitionResponse{OrderID: id, StatusBeo: order.BeoStatus}, nil
}

// Approve moves SENT_TO_KANIT to APPROVED, mints the file record, and
// then generates the document. The approval commits before generation
// starts: a render or storage failure leaves the order APPROVED with a
// record but no binary, which the status probe reports and
// RegeneratePDF recovers. An APPROVED order always carries a record.
func (s *Service) Approve(ctx context.Context, id int64) (*TransitionResponse, error) {
	actor, _ := shared.ActorFromContext(ctx)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.UpdateBeoStatus(ctx, id,
			[]BeoStatus{BeoStatusSentToKanit}, BeoStatusApproved)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, id, actor, shared.TransitionApprove, "")

	if _, ferr := s.ensureFileRecord(ctx, id); ferr != nil {
		s.logger.Error("file record mint after approval failed",
			slog.Int64("order_id", id), slog.String("error", ferr.Error()))
	}

	resp := &TransitionResponse{OrderID: id, StatusBeo: BeoStatusApproved}
	file, genErr := s.generatePDF(ctx, id)
	if genErr != nil {
		s.logger.Error("document generation after approval failed",
			slog.Int64("order_id", id), slog.String("error", genErr.Error()))
		resp.Warning = "order approved but document generation failed; use regenerate to retry"
	} else {
		resp.File = file
	}

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.KindApproved, order, actor, nil)
	return resp, nil
}

// UpdateSchedules replaces the order's schedule set. Editing an
// APPROVED order reopens the approval cycle.
func (s *Service) UpdateSchedules(ctx context.Context, id int64, req UpdateSchedulesRequest) (*Order, error) {
	return s.contentEdit(ctx, id, []string{"schedules"}, func(ctx context.Context, tx TxRepository) error {
		return tx.ReplaceSchedules(ctx, id, req.Schedules)
	})
}

// UpdateBeos replaces the order's BEO set. Editing an APPROVED order
// reopens the approval cycle.
func (s *Service) UpdateBeos(ctx context.Context, id int64, req UpdateBeosRequest) (*Order, error) {
	return s.contentEdit(ctx, id, []string{"beos"}, func(ctx context.Context, tx TxRepository) error {
		return tx.ReplaceBeos(ctx, id, req.Beos)
	})
}

// contentEdit runs one edit inside a transaction and applies the single
// post-approval rule: any content change while APPROVED moves the order
// to NEEDS_REVISION, deletes the stale PDF binary, and notifies the
// supervisor role.
func (s *Service) contentEdit(ctx context.Context, id int64, changed []string, edit func(context.Context, TxRepository) error) (*Order, error) {
	actor, _ := shared.ActorFromContext(ctx)

	var reopened bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, beoStatus, err := tx.GetOrderStatuses(ctx, id)
		if err != nil {
			return err
		}
		if err := edit(ctx, tx); err != nil {
			return err
		}
		if beoStatus == BeoStatusApproved {
			if _, err := tx.UpdateBeoStatus(ctx, id,
				[]BeoStatus{BeoStatusApproved}, BeoStatusNeedsRevision); err != nil {
				return err
			}
			reopened = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reopened {
		s.afterReopen(ctx, id, actor, changed)
	}
	return s.repo.GetOrder(ctx, id)
}

// afterReopen cleans up once a post-approval edit has committed: the
// stale binary goes away (record and file_code stay), the transition is
// logged, the supervisor role is told what changed.
func (s *Service) afterReopen(ctx context.Context, id int64, actor shared.Actor, changed []string) {
	file, err := s.repo.GetBeoFile(ctx, id)
	switch {
	case err == nil:
		if derr := s.store.Delete(ctx, file.FilePath); derr != nil {
			s.logger.Warn("stale document binary not deleted",
				slog.Int64("order_id", id), slog.String("error", derr.Error()))
		}
	case !errors.Is(err, shared.ErrNotFound):
		s.logger.Warn("file record lookup after reopen failed",
			slog.Int64("order_id", id), slog.String("error", err.Error()))
	}

	s.record(ctx, id, actor, shared.TransitionReopen, fmt.Sprintf("changed: %v", changed))

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		s.logger.Warn("order reload after reopen failed",
			slog.Int64("order_id", id), slog.String("error", err.Error()))
		return
	}
	s.notify(ctx, notify.KindNeedsRevision, order, actor, changed)
}

// record writes the transition audit entry. Audit failures are logged,
// never propagated; the transition itself has already committed.
func (s *Service) record(ctx context.Context, id int64, actor shared.Actor, action shared.TransitionAction, note string) {
	if s.transitions == nil {
		return
	}
	err := s.transitions.Record(ctx, shared.TransitionLog{
		OrderID: id,
		ActorID: actor.UserID,
		Action:  action,
		Note:    note,
		At:      s.now(),
	})
	if err != nil {
		s.logger.Warn("transition audit write failed",
			slog.Int64("order_id", id), slog.String("action", string(action)),
			slog.String("error", err.Error()))
	}
}

// notify fans the event out. Failures are logged, never propagated.
func (s *Service) notify(ctx context.Context, kind notify.EventKind, order *Order, actor shared.Actor, changed []string) {
	if s.notifier == nil {
		return
	}
	ev := notify.Event{
		Kind:          kind,
		OrderID:       order.ID,
		OrderCode:     order.CustomCode,
		EventName:     order.EventName,
		ActorID:       actor.UserID,
		ActorName:     actor.Name,
		ChangedFields: changed,
	}
	if kind == notify.KindApproved {
		pics, err := s.repo.GetBeoPICs(ctx, order.ID)
		if err != nil {
			s.logger.Warn("pic lookup for notification failed",
				slog.Int64("order_id", order.ID), slog.String("error", err.Error()))
		}
		for _, p := range pics {
			ev.PICs = append(ev.PICs, notify.Recipient{UserID: p.UserID, Name: p.Name, Email: p.Email})
		}
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("notification fan-out failed",
			slog.Int64("order_id", order.ID), slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
	}
}

// ============================================================================
// DOCUMENT GENERATION
// ============================================================================

// RegeneratePDF rebuilds the document for an APPROVED order. It
// recovers the tolerated approve-then-fail state and also serves plain
// re-issues.
func (s *Service) RegeneratePDF(ctx context.Context, id int64) (*BeoFile, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BeoStatus != BeoStatusApproved {
		return nil, shared.ErrNotApproved
	}
	return s.generatePDF(ctx, id)
}

// generatePDF serialises generation per order: concurrent callers in
// this process collapse via singleflight, concurrent processes contend
// on the redis mutex. The loser of the mutex gets a conflict.
func (s *Service) generatePDF(ctx context.Context, id int64) (*BeoFile, error) {
	v, err, _ := s.genGroup.Do(fmt.Sprintf("gen:%d", id), func() (interface{}, error) {
		lock := s.locks(shared.DocumentLockKey(id))
		if err := lock.Lock(ctx); err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				return nil, fmt.Errorf("%w: generation already in progress", shared.ErrTransitionConflict)
			}
			return nil, err
		}
		defer func() { _ = lock.Unlock(context.WithoutCancel(ctx)) }()
		return s.generateLocked(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*BeoFile), nil
}

// ensureFileRecord returns the order's file record, minting an empty
// one when none exists. The code and the dated storage key are assigned
// here and are final; every later render reuses them so links never
// break. Minting before the first render keeps the record present even
// when that render fails.
func (s *Service) ensureFileRecord(ctx context.Context, id int64) (*BeoFile, error) {
	existing, err := s.repo.GetBeoFile(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	fileCode := document.NewFileCode()
	file, err := s.repo.CreateBeoFile(ctx, BeoFile{
		OrderID:          id,
		FileCode:         fileCode,
		FilePath:         document.StorageKey(fileCode, s.now()),
		OriginalFilename: document.SanitizeCode(fileCode) + ".pdf",
		MimeType:         "application/pdf",
	})
	if errors.Is(err, shared.ErrTransitionConflict) {
		// Lost the insert race; the winner's record is authoritative.
		return s.repo.GetBeoFile(ctx, id)
	}
	return file, err
}

func (s *Service) generateLocked(ctx context.Context, id int64) (*BeoFile, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, _ := shared.ActorFromContext(ctx)

	file, err := s.ensureFileRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(ctx, s.buildDocument(order, file.FileCode, file.FilePath, actor))
	if err != nil {
		return nil, err
	}

	meta := FileMetadata{
		GeneratedAt:     result.GeneratedAt,
		TemplateVersion: document.TemplateVersion,
		Checksum:        result.Checksum,
		SkippedAssets:   skipNames(result.Skips),
		Downloads:       file.Metadata.Downloads,
	}
	// The first render fills the minted record and leaves the count at
	// zero; only renders replacing an existing binary count as
	// regenerations.
	next := file.RegenerationCount
	if !file.Metadata.GeneratedAt.IsZero() {
		next++
	}
	return s.repo.UpdateBeoFileBinary(ctx, file.ID, file.RegenerationCount, next, result.SizeBytes, meta)
}

func (s *Service) buildDocument(order *Order, fileCode, storageKey string, actor shared.Actor) document.OrderDocument {
	doc := document.OrderDocument{
		FileCode:     fileCode,
		StorageKey:   storageKey,
		OrderCode:    order.CustomCode,
		EventName:    order.EventName,
		CustomerName: order.CustomerName,
		StatusLabel:  order.BeoStatus.Label(),
		PreparedBy:   actor.Name,
	}
	for _, sch := range order.Schedules {
		doc.Schedules = append(doc.Schedules, document.ScheduleLine{
			Title:    sch.Title,
			Location: sch.Location,
			StartsAt: sch.StartsAt,
			EndsAt:   sch.EndsAt,
		})
	}
	for _, beo := range order.Beos {
		section := document.BeoSection{
			Department:  beo.DepartmentName,
			PICName:     beo.PICName,
			PackageName: beo.PackageName,
			Notes:       beo.Notes,
		}
		for _, att := range beo.Attachments {
			section.Attachments = append(section.Attachments, document.AssetRef{
				Name: att.OriginalName,
				Key:  att.StorageKey,
			})
		}
		doc.Beos = append(doc.Beos, section)
	}
	for _, att := range order.Attachments {
		doc.Attachments = append(doc.Attachments, document.AssetRef{
			Name: att.OriginalName,
			Key:  att.StorageKey,
		})
	}
	return doc
}

func skipNames(skips []document.AssetSkip) []string {
	if len(skips) == 0 {
		return nil
	}
	out := make([]string, len(skips))
	for i, sk := range skips {
		out[i] = fmt.Sprintf("%s (%s)", sk.Name, sk.Reason)
	}
	return out
}

// ============================================================================
// DOCUMENT ACCESS
// ============================================================================

// PDFStatus probes the order's document state without touching bytes
// beyond an existence check.
func (s *Service) PDFStatus(ctx context.Context, id int64) (*PDFStatus, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &PDFStatus{
		StatusBeo:      order.BeoStatus,
		CanGeneratePDF: order.BeoStatus == BeoStatusApproved,
	}
	file, err := s.repo.GetBeoFile(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			st.NeedsRegeneration = st.CanGeneratePDF
			return st, nil
		}
		return nil, err
	}

	st.HasBeoRecord = true
	st.FileCode = file.FileCode
	exists, err := s.store.Exists(ctx, file.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageFailure, err)
	}
	st.HasPDFFile = exists
	st.NeedsRegeneration = order.BeoStatus == BeoStatusApproved && !exists
	return st, nil
}

// Download is one served document plus its headers.
type Download struct {
	Data     []byte
	Filename string
	MimeType string
}

// DownloadPDF opens the generated document for an APPROVED order and
// appends a download audit entry. A missing record or binary while
// APPROVED reports ErrNeedsRegeneration.
func (s *Service) DownloadPDF(ctx context.Context, id int64) (*Download, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BeoStatus != BeoStatusApproved {
		return nil, shared.ErrNotApproved
	}

	file, err := s.repo.GetBeoFile(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNeedsRegeneration
		}
		return nil, err
	}

	data, err := s.store.Get(ctx, file.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, shared.ErrNeedsRegeneration
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageFailure, err)
	}

	actor, _ := shared.ActorFromContext(ctx)
	if aerr := s.repo.AppendDownload(ctx, file.ID, DownloadRecord{
		DownloadedAt: s.now(),
		DownloadedBy: actor.Name,
		UserID:       actor.UserID,
		IPAddress:    actor.IP,
	}); aerr != nil {
		s.logger.Warn("download audit append failed",
			slog.Int64("order_id", id), slog.String("error", aerr.Error()))
	}

	return &Download{
		Data:     data,
		Filename: file.OriginalFilename,
		MimeType: file.MimeType,
	}, nil
}

// ============================================================================
// ATTACHMENTS
// ============================================================================

// AddOrderAttachment stores the upload and records it. Uploading to an
// APPROVED order is a content edit and reopens the approval cycle.
func (s *Service) AddOrderAttachment(ctx context.Context, orderID int64, name string, data []byte) (*OrderAttachment, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	key := document.AttachmentKey(orderID, name)
	if err := s.store.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageFailure, err)
	}

	att, err := s.repo.AddOrderAttachment(ctx, OrderAttachment{
		OrderID:      orderID,
		StorageKey:   key,
		OriginalName: name,
		SizeBytes:    int64(len(data)),
	})
	if err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}

	s.reopenIfApproved(ctx, order, []string{"attachments"})
	return att, nil
}

// DeleteOrderAttachment removes the record and its blob.
func (s *Service) DeleteOrderAttachment(ctx context.Context, orderID, attachmentID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	att, err := s.repo.GetOrderAttachment(ctx, orderID, attachmentID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteOrderAttachment(ctx, orderID, attachmentID); err != nil {
		return err
	}
	if derr := s.store.Delete(ctx, att.StorageKey); derr != nil {
		s.logger.Warn("attachment blob not deleted",
			slog.Int64("order_id", orderID), slog.String("key", att.StorageKey),
			slog.String("error", derr.Error()))
	}
	s.reopenIfApproved(ctx, order, []string{"attachments"})
	return nil
}

// AddBeoAttachment stores an upload against one department's BEO.
func (s *Service) AddBeoAttachment(ctx context.Context, orderID, beoID int64, name string, data []byte) (*BeoAttachment, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	key := document.AttachmentKey(orderID, name)
	if err := s.store.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageFailure, err)
	}

	att, err := s.repo.AddBeoAttachment(ctx, orderID, BeoAttachment{
		BeoID:        beoID,
		StorageKey:   key,
		OriginalName: name,
		SizeBytes:    int64(len(data)),
	})
	if err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}

	s.reopenIfApproved(ctx, order, []string{"beo_attachments"})
	return att, nil
}

// reopenIfApproved applies the post-approval edit rule for attachment
// changes, which commit outside the main edit transaction.
func (s *Service) reopenIfApproved(ctx context.Context, order *Order, changed []string) {
	if order.BeoStatus != BeoStatusApproved {
		return
	}
	actor, _ := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.UpdateBeoStatus(ctx, order.ID,
			[]BeoStatus{BeoStatusApproved}, BeoStatusNeedsRevision)
		return err
	})
	if err != nil {
		if errors.Is(err, shared.ErrTransitionConflict) {
			// Someone else already reopened it.
			return
		}
		s.logger.Warn("reopen after attachment change failed",
			slog.Int64("order_id", order.ID), slog.String("error", err.Error()))
		return
	}
	s.afterReopen(ctx, order.ID, actor, changed)
}
