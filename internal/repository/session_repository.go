package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vorbereitung/api/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO sessions (
			token, user_id, device_fingerprint, ip_address, user_agent, created_at, last_activity
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		session.Token,
		session.UserID,
		session.DeviceFingerprint,
		session.IPAddress,
		session.UserAgent,
	)
	return err
}

func (r *SessionRepository) FindByToken(ctx context.Context, token string) (models.Session, error) {
	const query = `
		SELECT token, user_id, device_fingerprint, ip_address, user_agent, created_at, last_activity
		FROM sessions
		WHERE token = $1
	`

	row := r.pool.QueryRow(ctx, query, token)
	var session models.Session
	if err := row.Scan(
		&session.Token,
		&session.UserID,
		&session.DeviceFingerprint,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.LastActivity,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}

// UpdateActivity refreshes last_activity; keep-alive pings call this.
// Last write wins under concurrent pings, which is fine.
func (r *SessionRepository) UpdateActivity(ctx context.Context, token string) error {
	const query = `UPDATE sessions SET last_activity = NOW() WHERE token = $1`
	cmd, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Destroy removes one session. Deleting an already-gone token is not an
// error; logout is idempotent.
func (r *SessionRepository) Destroy(ctx context.Context, token string) error {
	const query = `DELETE FROM sessions WHERE token = $1`
	_, err := r.pool.Exec(ctx, query, token)
	return err
}

func (r *SessionRepository) DestroyAll(ctx context.Context, userID string) error {
	const query = `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *SessionRepository) CountDistinctDevices(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT device_fingerprint) FROM sessions WHERE user_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SessionRepository) DeviceFingerprintExists(ctx context.Context, userID, fingerprint string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sessions WHERE user_id = $1 AND device_fingerprint = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, fingerprint).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	const query = `
		SELECT token, user_id, device_fingerprint, ip_address, user_agent, created_at, last_activity
		FROM sessions
		WHERE user_id = $1
		ORDER BY last_activity DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.Token,
			&session.UserID,
			&session.DeviceFingerprint,
			&session.IPAddress,
			&session.UserAgent,
			&session.CreatedAt,
			&session.LastActivity,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// CleanExpired deletes sessions idle longer than maxIdle. Runs on a cron
// schedule; freeing a fingerprint's rows frees a device slot.
func (r *SessionRepository) CleanExpired(ctx context.Context, maxIdle time.Duration) (int64, error) {
	const query = `DELETE FROM sessions WHERE last_activity < NOW() - make_interval(secs => $1)`
	cmd, err := r.pool.Exec(ctx, query, maxIdle.Seconds())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
