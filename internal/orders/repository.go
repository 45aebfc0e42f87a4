package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-events/meridian-beo/internal/platform/db"
	"github.com/meridian-events/meridian-beo/internal/shared"
)

// PIC identifies a department person-in-charge for notification fan-out.
type PIC struct {
	UserID int64
	Name   string
	Email  string
}

// Repository provides PostgreSQL backed persistence for orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that must share one transaction.
type TxRepository interface {
	GenerateOrderCode(ctx context.Context, date time.Time) (string, error)
	GetOrderStatuses(ctx context.Context, id int64) (OrderStatus, BeoStatus, error)
	InsertOrder(ctx context.Context, o Order) (int64, error)
	UpdateOrderStatus(ctx context.Context, id int64, from, to OrderStatus) error
	UpdateBeoStatus(ctx context.Context, id int64, from []BeoStatus, to BeoStatus) (BeoStatus, error)
	ReplaceSchedules(ctx context.Context, orderID int64, lines []ScheduleInput) error
	ReplaceBeos(ctx context.Context, orderID int64, inputs []BeoInput) error
	DeleteOrder(ctx context.Context, id int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// ============================================================================
// ORDER READS
// ============================================================================

// GetOrder retrieves one order with schedules, beos and file record.
func (r *Repository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	query := `
		SELECT o.id, o.custom_code, o.event_name, o.customer_id, o.event_id,
		       o.discount, o.start_date, o.end_date, o.status, o.status_beo,
		       o.created_by, o.created_at, o.updated_at, c.name AS customer_name
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1
	`
	var o Order
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.CustomCode, &o.EventName, &o.CustomerID, &o.EventID,
		&o.Discount, &o.StartDate, &o.EndDate, &o.Status, &o.BeoStatus,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.CustomerName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	if o.Schedules, err = r.getSchedules(ctx, id); err != nil {
		return nil, err
	}
	if o.Beos, err = r.getBeos(ctx, id); err != nil {
		return nil, err
	}
	if o.Attachments, err = r.getOrderAttachments(ctx, id); err != nil {
		return nil, err
	}
	file, err := r.GetBeoFile(ctx, id)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	o.File = file
	return &o, nil
}

func (r *Repository) getSchedules(ctx context.Context, orderID int64) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, title, location, starts_at, ends_at
		FROM order_schedules
		WHERE order_id = $1
		ORDER BY starts_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.OrderID, &s.Title, &s.Location, &s.StartsAt, &s.EndsAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) getBeos(ctx context.Context, orderID int64) ([]Beo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.order_id, b.department_id, b.package_id, b.user_id,
		       b.notes, d.name, COALESCE(p.name, ''), COALESCE(u.name, '')
		FROM beos b
		JOIN departments d ON d.id = b.department_id
		LEFT JOIN packages p ON p.id = b.package_id
		LEFT JOIN users u ON u.id = b.user_id
		WHERE b.order_id = $1
		ORDER BY d.name, b.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Beo
	ids := make([]int64, 0, 8)
	for rows.Next() {
		var b Beo
		if err := rows.Scan(&b.ID, &b.OrderID, &b.DepartmentID, &b.PackageID,
			&b.UserID, &b.Notes, &b.DepartmentName, &b.PackageName, &b.PICName); err != nil {
			return nil, err
		}
		out = append(out, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	atts, err := r.getBeoAttachments(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Attachments = atts[out[i].ID]
	}
	return out, nil
}

func (r *Repository) getBeoAttachments(ctx context.Context, beoIDs []int64) (map[int64][]BeoAttachment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, beo_id, storage_key, original_name, size_bytes, created_at
		FROM beo_attachments
		WHERE beo_id = ANY($1)
		ORDER BY id
	`, beoIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]BeoAttachment)
	for rows.Next() {
		var a BeoAttachment
		if err := rows.Scan(&a.ID, &a.BeoID, &a.StorageKey, &a.OriginalName, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		out[a.BeoID] = append(out[a.BeoID], a)
	}
	return out, rows.Err()
}

func (r *Repository) getOrderAttachments(ctx context.Context, orderID int64) ([]OrderAttachment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, storage_key, original_name, size_bytes, created_at
		FROM order_attachments
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderAttachment
	for rows.Next() {
		var a OrderAttachment
		if err := rows.Scan(&a.ID, &a.OrderID, &a.StorageKey, &a.OriginalName, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListOrders returns a filtered page of orders plus the total count.
func (r *Repository) ListOrders(ctx context.Context, f ListOrdersFilter) ([]Order, int64, error) {
	conds := []string{"1=1"}
	args := []interface{}{}
	idx := 1

	if f.Status != "" {
		conds = append(conds, fmt.Sprintf("o.status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.BeoStatus != "" {
		conds = append(conds, fmt.Sprintf("o.status_beo = $%d", idx))
		args = append(args, f.BeoStatus)
		idx++
	}
	if f.CustomerID > 0 {
		conds = append(conds, fmt.Sprintf("o.customer_id = $%d", idx))
		args = append(args, f.CustomerID)
		idx++
	}
	if f.Search != "" {
		conds = append(conds, fmt.Sprintf("(LOWER(o.custom_code) LIKE $%d OR LOWER(o.event_name) LIKE $%d)", idx, idx))
		args = append(args, "%"+strings.ToLower(f.Search)+"%")
		idx++
	}
	where := strings.Join(conds, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders o WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT o.id, o.custom_code, o.event_name, o.customer_id, o.event_id,
		       o.discount, o.start_date, o.end_date, o.status, o.status_beo,
		       o.created_by, o.created_at, o.updated_at, c.name AS customer_name
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE %s
		ORDER BY o.start_date DESC, o.id DESC
		LIMIT $%d OFFSET $%d
	`, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.CustomCode, &o.EventName, &o.CustomerID, &o.EventID,
			&o.Discount, &o.StartDate, &o.EndDate, &o.Status, &o.BeoStatus,
			&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.CustomerName,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// GetBeoPICs returns the distinct per-department PICs assigned on an
// order's BEOs. Inactive users are excluded.
func (r *Repository) GetBeoPICs(ctx context.Context, orderID int64) ([]PIC, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT u.id, u.name, u.email
		FROM beos b
		JOIN users u ON u.id = b.user_id
		WHERE b.order_id = $1 AND u.is_active
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PIC
	for rows.Next() {
		var p PIC
		if err := rows.Scan(&p.UserID, &p.Name, &p.Email); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ============================================================================
// TX OPERATIONS
// ============================================================================

// GenerateOrderCode produces the next EVT-YYYYMM-NNNN code for the
// month via an upsert counter, so two concurrent creates never collide.
func (t *txRepo) GenerateOrderCode(ctx context.Context, date time.Time) (string, error) {
	var seq int64
	period := date.Format("200601")
	err := t.tx.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, "EVT", period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EVT-%s-%04d", period, seq), nil
}

// GetOrderStatuses reads both status axes under a row lock so the rest
// of the transaction sees a stable view.
func (t *txRepo) GetOrderStatuses(ctx context.Context, id int64) (OrderStatus, BeoStatus, error) {
	var status OrderStatus
	var beoStatus BeoStatus
	err := t.tx.QueryRow(ctx,
		"SELECT status, status_beo FROM orders WHERE id = $1 FOR UPDATE", id,
	).Scan(&status, &beoStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", shared.ErrNotFound
		}
		return "", "", err
	}
	return status, beoStatus, nil
}

func (t *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (custom_code, event_name, customer_id, event_id,
		                    discount, start_date, end_date, status, status_beo,
		                    created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id
	`, o.CustomCode, o.EventName, o.CustomerID, o.EventID, o.Discount,
		o.StartDate, o.EndDate, o.Status, o.BeoStatus, o.CreatedBy).Scan(&id)
	return id, err
}

// UpdateOrderStatus moves the inquiry axis with a compare-and-set so a
// stale transition surfaces as a conflict rather than a silent no-op.
func (t *txRepo) UpdateOrderStatus(ctx context.Context, id int64, from, to OrderStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return statusConflict(ctx, t.tx, id)
	}
	return nil
}

// UpdateBeoStatus moves the approval axis. Any of the listed source
// statuses is accepted; the one actually matched is returned.
func (t *txRepo) UpdateBeoStatus(ctx context.Context, id int64, from []BeoStatus, to BeoStatus) (BeoStatus, error) {
	var prev BeoStatus
	err := t.tx.QueryRow(ctx, `
		UPDATE orders o SET status_beo = $1, updated_at = NOW()
		FROM (SELECT id, status_beo FROM orders WHERE id = $2 FOR UPDATE) cur
		WHERE o.id = cur.id AND cur.status_beo = ANY($3)
		RETURNING cur.status_beo
	`, to, id, statusStrings(from)).Scan(&prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", statusConflict(ctx, t.tx, id)
		}
		return "", err
	}
	return prev, nil
}

// statusConflict distinguishes "order gone" from "wrong status".
func statusConflict(ctx context.Context, tx pgx.Tx, id int64) error {
	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return shared.ErrNotFound
	}
	return shared.ErrTransitionConflict
}

func statusStrings(in []BeoStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// ReplaceSchedules reconciles the stored schedule set against the
// submitted one: unknown ids are rejected, absent rows deleted.
func (t *txRepo) ReplaceSchedules(ctx context.Context, orderID int64, lines []ScheduleInput) error {
	keep := make([]int64, 0, len(lines))
	for _, in := range lines {
		if in.ID == 0 {
			var id int64
			err := t.tx.QueryRow(ctx, `
				INSERT INTO order_schedules (order_id, title, location, starts_at, ends_at)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, orderID, in.Title, in.Location, in.StartsAt, in.EndsAt).Scan(&id)
			if err != nil {
				return err
			}
			keep = append(keep, id)
			continue
		}
		tag, err := t.tx.Exec(ctx, `
			UPDATE order_schedules
			SET title = $1, location = $2, starts_at = $3, ends_at = $4
			WHERE id = $5 AND order_id = $6
		`, in.Title, in.Location, in.StartsAt, in.EndsAt, in.ID, orderID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: schedule %d does not belong to order %d",
				shared.ErrValidation, in.ID, orderID)
		}
		keep = append(keep, in.ID)
	}

	_, err := t.tx.Exec(ctx, `
		DELETE FROM order_schedules
		WHERE order_id = $1 AND NOT (id = ANY($2))
	`, orderID, keep)
	return err
}

// ReplaceBeos reconciles the BEO set. Deleting a BEO row cascades to
// its attachments at the database level; the orphaned blobs are left
// for the nightly sweep.
func (t *txRepo) ReplaceBeos(ctx context.Context, orderID int64, inputs []BeoInput) error {
	keep := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		if in.ID == 0 {
			var id int64
			err := t.tx.QueryRow(ctx, `
				INSERT INTO beos (order_id, department_id, package_id, user_id, notes)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, orderID, in.DepartmentID, in.PackageID, in.UserID, in.Notes).Scan(&id)
			if err != nil {
				return err
			}
			keep = append(keep, id)
			continue
		}
		tag, err := t.tx.Exec(ctx, `
			UPDATE beos
			SET department_id = $1, package_id = $2, user_id = $3, notes = $4
			WHERE id = $5 AND order_id = $6
		`, in.DepartmentID, in.PackageID, in.UserID, in.Notes, in.ID, orderID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: beo %d does not belong to order %d",
				shared.ErrValidation, in.ID, orderID)
		}
		keep = append(keep, in.ID)
	}

	_, err := t.tx.Exec(ctx, `
		DELETE FROM beos
		WHERE order_id = $1 AND NOT (id = ANY($2))
	`, orderID, keep)
	return err
}

func (t *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ============================================================================
// BEO FILE
// ============================================================================

// GetBeoFile returns the order's document record, ErrNotFound if none.
func (r *Repository) GetBeoFile(ctx context.Context, orderID int64) (*BeoFile, error) {
	query := `
		SELECT id, order_id, file_code, file_path, original_filename,
		       file_size, mime_type, regeneration_count, metadata,
		       created_at, updated_at
		FROM beo_files
		WHERE order_id = $1
	`
	var f BeoFile
	var meta []byte
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&f.ID, &f.OrderID, &f.FileCode, &f.FilePath, &f.OriginalFilename,
		&f.FileSize, &f.MimeType, &f.RegenerationCount, &meta,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &f.Metadata); err != nil {
			return nil, fmt.Errorf("decode file metadata: %w", err)
		}
	}
	return &f, nil
}

// CreateBeoFile inserts the first-generation record. The unique index
// on order_id guarantees at most one per order; a lost race with
// another generator surfaces as a conflict.
func (r *Repository) CreateBeoFile(ctx context.Context, f BeoFile) (*BeoFile, error) {
	meta, err := json.Marshal(f.Metadata)
	if err != nil {
		return nil, err
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO beo_files (order_id, file_code, file_path, original_filename,
		                       file_size, mime_type, regeneration_count, metadata,
		                       created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, f.OrderID, f.FileCode, f.FilePath, f.OriginalFilename,
		f.FileSize, f.MimeType, meta).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrTransitionConflict
		}
		return nil, err
	}
	return &f, nil
}

// UpdateBeoFileBinary records a finished render. The compare-and-set on
// regeneration_count makes a lost race visible instead of overwriting
// a newer generation's bookkeeping; the caller supplies the next count
// because the first render into a freshly minted record keeps it at 0.
func (r *Repository) UpdateBeoFileBinary(ctx context.Context, id int64, expectedRegen, newRegen int, size int64, meta FileMetadata) (*BeoFile, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	var f BeoFile
	var metaOut []byte
	err = r.pool.QueryRow(ctx, `
		UPDATE beo_files
		SET file_size = $1, metadata = $2,
		    regeneration_count = $3,
		    updated_at = NOW()
		WHERE id = $4 AND regeneration_count = $5
		RETURNING id, order_id, file_code, file_path, original_filename,
		          file_size, mime_type, regeneration_count, metadata,
		          created_at, updated_at
	`, size, raw, newRegen, id, expectedRegen).Scan(
		&f.ID, &f.OrderID, &f.FileCode, &f.FilePath, &f.OriginalFilename,
		&f.FileSize, &f.MimeType, &f.RegenerationCount, &metaOut,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrTransitionConflict
		}
		return nil, err
	}
	if err := json.Unmarshal(metaOut, &f.Metadata); err != nil {
		return nil, fmt.Errorf("decode file metadata: %w", err)
	}
	return &f, nil
}

// AppendDownload adds one audit entry to the file's download log.
func (r *Repository) AppendDownload(ctx context.Context, fileID int64, rec DownloadRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE beo_files
		SET metadata = jsonb_set(metadata, '{downloads}',
		        COALESCE(metadata->'downloads', '[]'::jsonb) || $1::jsonb),
		    updated_at = NOW()
		WHERE id = $2
	`, raw, fileID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ============================================================================
// ATTACHMENTS
// ============================================================================

// AddOrderAttachment records an uploaded order-level file.
func (r *Repository) AddOrderAttachment(ctx context.Context, a OrderAttachment) (*OrderAttachment, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO order_attachments (order_id, storage_key, original_name, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`, a.OrderID, a.StorageKey, a.OriginalName, a.SizeBytes).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOrderAttachment fetches one attachment scoped to its order.
func (r *Repository) GetOrderAttachment(ctx context.Context, orderID, attachmentID int64) (*OrderAttachment, error) {
	var a OrderAttachment
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, storage_key, original_name, size_bytes, created_at
		FROM order_attachments
		WHERE id = $1 AND order_id = $2
	`, attachmentID, orderID).Scan(&a.ID, &a.OrderID, &a.StorageKey, &a.OriginalName, &a.SizeBytes, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// DeleteOrderAttachment removes the database row. Blob cleanup is the
// caller's job.
func (r *Repository) DeleteOrderAttachment(ctx context.Context, orderID, attachmentID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM order_attachments WHERE id = $1 AND order_id = $2
	`, attachmentID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AddBeoAttachment records an uploaded BEO-level file after verifying
// the BEO belongs to the order.
func (r *Repository) AddBeoAttachment(ctx context.Context, orderID int64, a BeoAttachment) (*BeoAttachment, error) {
	var owner int64
	err := r.pool.QueryRow(ctx,
		"SELECT order_id FROM beos WHERE id = $1", a.BeoID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if owner != orderID {
		return nil, fmt.Errorf("%w: beo %d does not belong to order %d",
			shared.ErrValidation, a.BeoID, orderID)
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO beo_attachments (beo_id, storage_key, original_name, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`, a.BeoID, a.StorageKey, a.OriginalName, a.SizeBytes).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AttachmentKeys lists every blob key referenced by an order, used to
// clean storage when the order is deleted.
func (r *Repository) AttachmentKeys(ctx context.Context, orderID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT storage_key FROM order_attachments WHERE order_id = $1
		UNION ALL
		SELECT a.storage_key FROM beo_attachments a
		JOIN beos b ON b.id = a.beo_id
		WHERE b.order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
