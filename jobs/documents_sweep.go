package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-events/meridian-beo/internal/platform/storage"
)

// SweepStore is the blob store surface the sweep needs. *storage.Local
// satisfies it.
type SweepStore interface {
	storage.Store
	List(ctx context.Context, prefix string) ([]string, error)
	ModTime(ctx context.Context, key string) (time.Time, error)
}

// sweepGrace is how long a blob must exist before it may be swept.
// Attachment and document writes put the blob first and insert the
// referencing row afterwards; young blobs are kept so that gap never
// looks like an orphan.
const sweepGrace = time.Hour

// DocumentsSweepJob removes blobs no database row references any more.
// BEO reconciliation and order deletes drop rows eagerly but leave blob
// cleanup best-effort; this job is the backstop.
type DocumentsSweepJob struct {
	Pool   *pgxpool.Pool
	Store  SweepStore
	Logger *slog.Logger

	// references overrides the database snapshot in tests.
	references func(ctx context.Context) (map[string]struct{}, error)
}

// NewDocumentsSweepJob wires dependencies for the sweep handler.
func NewDocumentsSweepJob(pool *pgxpool.Pool, store SweepStore, logger *slog.Logger) *DocumentsSweepJob {
	return &DocumentsSweepJob{Pool: pool, Store: store, Logger: logger}
}

// Handle processes TaskDocumentsSweep tasks.
func (j *DocumentsSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil || (j.Pool == nil && j.references == nil) {
		return errors.New("documents sweep: handler not configured")
	}
	start := time.Now()

	// Candidates are listed before the reference snapshot. A blob
	// written during the sweep is then either absent from the candidate
	// list or already visible in the newer snapshot, so it survives;
	// the reverse order would delete blobs whose row landed in between.
	var candidates []string
	for _, prefix := range []string{"attachments", "pdfs"} {
		keys, err := j.Store.List(ctx, prefix)
		if err != nil {
			return err
		}
		candidates = append(candidates, keys...)
	}

	refs := j.references
	if refs == nil {
		refs = j.referencedKeys
	}
	referenced, err := refs(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-sweepGrace)
	swept := 0
	for _, key := range candidates {
		if _, ok := referenced[key]; ok {
			continue
		}
		mt, err := j.Store.ModTime(ctx, key)
		if err != nil {
			if !errors.Is(err, storage.ErrNotExist) {
				j.Logger.Warn("sweep stat blob", slog.String("key", key), slog.Any("error", err))
			}
			continue
		}
		if mt.After(cutoff) {
			continue
		}
		if err := j.Store.Delete(ctx, key); err != nil {
			j.Logger.Warn("sweep delete blob", slog.String("key", key), slog.Any("error", err))
			continue
		}
		swept++
	}

	j.Logger.Info("documents sweep finished",
		slog.Int("candidates", len(candidates)),
		slog.Int("swept", swept),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// referencedKeys collects every blob key the database still points at.
func (j *DocumentsSweepJob) referencedKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := j.Pool.Query(ctx, `SELECT storage_key FROM order_attachments
UNION
SELECT storage_key FROM beo_attachments
UNION
SELECT file_path FROM beo_files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out[key] = struct{}{}
	}
	return out, rows.Err()
}
