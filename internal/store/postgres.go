package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grokvideo/backend/internal/models"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ Store = (*Postgres)(nil)

const accountColumns = "username, password, plan, expires_at, is_active, machine_id, video_limit, videos_used, created_at"

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.Username, &a.Password, &a.Plan, &a.ExpiresAt, &a.IsActive, &a.MachineID, &a.VideoLimit, &a.VideosUsed, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Postgres) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM app_users WHERE username = $1
	`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM app_users ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *Postgres) Upsert(ctx context.Context, a *models.Account) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO app_users (username, password, plan, expires_at, is_active, machine_id, video_limit, videos_used)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, 0)
		ON CONFLICT (username) DO UPDATE SET
			password    = EXCLUDED.password,
			plan        = EXCLUDED.plan,
			expires_at  = EXCLUDED.expires_at,
			is_active   = TRUE,
			machine_id  = EXCLUDED.machine_id,
			video_limit = EXCLUDED.video_limit,
			videos_used = 0
		RETURNING created_at
	`, a.Username, a.Password, a.Plan, a.ExpiresAt, a.MachineID, a.VideoLimit).Scan(&a.CreatedAt)
}

func (s *Postgres) Patch(ctx context.Context, username string, p AccountPatch) error {
	parts := make([]string, 0, 8)
	args := make([]any, 0, 8)
	add := func(col string, v any) {
		args = append(args, v)
		parts = append(parts, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Password != nil {
		add("password", *p.Password)
	}
	if p.Plan != nil {
		add("plan", *p.Plan)
	}
	if p.ExpiresAt != nil {
		add("expires_at", *p.ExpiresAt)
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	if p.MachineID != nil {
		add("machine_id", *p.MachineID)
	}
	if p.VideoLimit != nil {
		add("video_limit", *p.VideoLimit)
	}
	if p.ResetMachine {
		parts = append(parts, "machine_id = NULL")
	}
	if p.ResetUsage {
		parts = append(parts, "videos_used = 0")
	}
	if len(parts) == 0 {
		return nil
	}
	args = append(args, username)
	query := fmt.Sprintf("UPDATE app_users SET %s WHERE username = $%d", strings.Join(parts, ", "), len(args))
	_, err := s.pool.Exec(ctx, query, args...)
	return err
}

func (s *Postgres) Delete(ctx context.Context, username string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM app_users WHERE username = $1", username)
	return err
}

// BindMachine is a single conditional write so that two concurrent first
// logins cannot both claim the slot.
func (s *Postgres) BindMachine(ctx context.Context, username, machineID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE app_users SET machine_id = $1
		WHERE username = $2 AND machine_id IS NULL
	`, machineID, username)
	return err
}

// AddUsage increments and reads back in one statement, so concurrent
// recordings never lose updates or observe another request's partial state.
func (s *Postgres) AddUsage(ctx context.Context, username string, count int) (int, *int, error) {
	var used int
	var limit *int
	err := s.pool.QueryRow(ctx, `
		UPDATE app_users SET videos_used = videos_used + $1
		WHERE username = $2
		RETURNING videos_used, video_limit
	`, count, username).Scan(&used, &limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	return used, limit, nil
}
