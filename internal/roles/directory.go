// Package roles resolves role names to member sets. It is the single
// lookup path for workflow audiences; callers never branch on schema
// details.
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-events/meridian-beo/internal/shared"
)

// Well-known workflow roles.
const (
	RoleKanit = "kanit"
	RoleSales = "sales"
)

// Member is a user holding a role.
type Member struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Directory answers role membership queries.
type Directory struct {
	pool     *pgxpool.Pool
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewDirectory constructs a Directory. The redis client is optional; without
// it every lookup hits the database.
func NewDirectory(pool *pgxpool.Pool, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Directory {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Directory{pool: pool, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// MembersOf returns all active users holding the named role.
func (d *Directory) MembersOf(ctx context.Context, role string) ([]Member, error) {
	if d == nil || d.pool == nil {
		return nil, errors.New("roles: directory not initialised")
	}
	if role == "" {
		return nil, errors.New("roles: role name required")
	}

	if cached, ok := d.fromCache(ctx, role); ok {
		return cached, nil
	}

	rows, err := d.pool.Query(ctx, `SELECT u.id, u.name, u.email
FROM users u
JOIN user_roles ur ON ur.user_id = u.id
JOIN roles r ON r.id = ur.role_id
WHERE r.name = $1 AND u.is_active
ORDER BY u.id`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	d.toCache(ctx, role, members)
	return members, nil
}

func (d *Directory) fromCache(ctx context.Context, role string) ([]Member, bool) {
	if d.cache == nil {
		return nil, false
	}
	raw, err := d.cache.Get(ctx, shared.RoleMembersCacheKey(role)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && d.logger != nil {
			d.logger.Warn("role cache get", slog.String("role", role), slog.Any("error", err))
		}
		return nil, false
	}
	var members []Member
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, false
	}
	return members, true
}

func (d *Directory) toCache(ctx context.Context, role string, members []Member) {
	if d.cache == nil {
		return
	}
	raw, err := json.Marshal(members)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, shared.RoleMembersCacheKey(role), raw, d.cacheTTL).Err(); err != nil && d.logger != nil {
		d.logger.Warn("role cache set", slog.String("role", role), slog.Any("error", err))
	}
}

// Invalidate drops the cached member set for a role.
func (d *Directory) Invalidate(ctx context.Context, role string) {
	if d == nil || d.cache == nil {
		return
	}
	_ = d.cache.Del(ctx, shared.RoleMembersCacheKey(role)).Err()
}
