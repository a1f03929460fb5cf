package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vorbereitung/api/internal/models"
)

type SettingRepository struct {
	pool *pgxpool.Pool
}

func NewSettingRepository(pool *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{pool: pool}
}

// Get returns the stored value or def when the key is absent.
func (r *SettingRepository) Get(ctx context.Context, key, def string) (string, error) {
	const query = `SELECT value FROM settings WHERE key = $1`
	var value string
	if err := r.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return def, nil
		}
		return "", err
	}
	return value, nil
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, key, value)
	return err
}

func (r *SettingRepository) All(ctx context.Context) (map[string]string, error) {
	const query = `SELECT key, value FROM settings`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// MaintenanceActive re-reads the flag from storage, so a toggle takes
// effect on the very next request.
func (r *SettingRepository) MaintenanceActive(ctx context.Context) (bool, error) {
	value, err := r.Get(ctx, models.SettingMaintenanceMode, "0")
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

func (r *SettingRepository) SetMaintenance(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	return r.Set(ctx, models.SettingMaintenanceMode, value)
}

func (r *SettingRepository) LogoutTimerMinutes(ctx context.Context) (int, error) {
	value, err := r.Get(ctx, models.SettingLogoutTimer, strconv.Itoa(models.DefaultLogoutTimerMinutes))
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(value)
	if err != nil || minutes < 1 {
		return models.DefaultLogoutTimerMinutes, nil
	}
	return minutes, nil
}

func (r *SettingRepository) SetLogoutTimer(ctx context.Context, minutes int) error {
	return r.Set(ctx, models.SettingLogoutTimer, strconv.Itoa(minutes))
}
