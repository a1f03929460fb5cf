package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vorbereitung/api/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const userColumns = `id, name, surname, email, password_hash, phone, role, is_active, access_b1, access_b2, device_limit, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, name, surname, email, password_hash, phone, role, is_active, access_b1, access_b2, device_limit, created_at, updated_at
		) VALUES (
			$1, $2, $3, LOWER($4), $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Surname,
		user.Email,
		user.PasswordHash,
		user.Phone,
		user.Role,
		user.IsActive,
		user.AccessB1,
		user.AccessB2,
		user.DeviceLimit,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	// Emails are stored lowercase; compare case-insensitively.
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = LOWER($1)`
	return r.scanUser(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) List(ctx context.Context, includePending bool) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	if !includePending {
		query = `SELECT ` + userColumns + ` FROM users WHERE is_active ORDER BY created_at DESC`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectUsers(rows)
}

func (r *UserRepository) ListPending(ctx context.Context) ([]models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE NOT is_active AND role = 'user' ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectUsers(rows)
}

// UserUpdate carries the whitelisted fields of a partial update. Nil means
// leave unchanged. The password hash deliberately has its own path.
type UserUpdate struct {
	Name        *string
	Surname     *string
	Email       *string
	Phone       *string
	Role        *models.UserRole
	IsActive    *bool
	AccessB1    *bool
	AccessB2    *bool
	DeviceLimit *int
}

func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Surname == nil && u.Email == nil && u.Phone == nil &&
		u.Role == nil && u.IsActive == nil && u.AccessB1 == nil && u.AccessB2 == nil &&
		u.DeviceLimit == nil
}

func (r *UserRepository) Update(ctx context.Context, id string, upd UserUpdate) error {
	const query = `
		UPDATE users SET
			name = COALESCE($2, name),
			surname = COALESCE($3, surname),
			email = COALESCE(LOWER($4), email),
			phone = COALESCE($5, phone),
			role = COALESCE($6, role),
			is_active = COALESCE($7, is_active),
			access_b1 = COALESCE($8, access_b1),
			access_b2 = COALESCE($9, access_b2),
			device_limit = COALESCE($10, device_limit),
			updated_at = NOW()
		WHERE id = $1
	`

	cmd, err := r.pool.Exec(ctx, query,
		id,
		upd.Name,
		upd.Surname,
		upd.Email,
		upd.Phone,
		upd.Role,
		upd.IsActive,
		upd.AccessB1,
		upd.AccessB2,
		upd.DeviceLimit,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Surname,
		&user.Email,
		&user.PasswordHash,
		&user.Phone,
		&user.Role,
		&user.IsActive,
		&user.AccessB1,
		&user.AccessB2,
		&user.DeviceLimit,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) collectUsers(rows pgx.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
