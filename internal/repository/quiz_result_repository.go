package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vorbereitung/api/internal/models"
)

type QuizResultRepository struct {
	pool *pgxpool.Pool
}

func NewQuizResultRepository(pool *pgxpool.Pool) *QuizResultRepository {
	return &QuizResultRepository{pool: pool}
}

func (r *QuizResultRepository) Create(ctx context.Context, result models.QuizResult) error {
	const query = `
		INSERT INTO quiz_results (
			id, user_id, quiz_id, quiz_level, score, total_questions, answers, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		result.ID,
		result.UserID,
		result.QuizID,
		result.QuizLevel,
		result.Score,
		result.TotalQuestions,
		result.Answers,
	)
	return err
}

func (r *QuizResultRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.QuizResult, error) {
	const query = `
		SELECT id, user_id, quiz_id, quiz_level, score, total_questions, answers, completed_at
		FROM quiz_results
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectResults(rows)
}

func (r *QuizResultRepository) ListByUserAndLevel(ctx context.Context, userID string, level models.QuizLevel) ([]models.QuizResult, error) {
	const query = `
		SELECT id, user_id, quiz_id, quiz_level, score, total_questions, answers, completed_at
		FROM quiz_results
		WHERE user_id = $1 AND quiz_level = $2
		ORDER BY completed_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectResults(rows)
}

// StatsByUser aggregates per-level totals and score percentages.
func (r *QuizResultRepository) StatsByUser(ctx context.Context, userID string) ([]models.LevelStats, error) {
	const query = `
		SELECT quiz_level,
		       COUNT(*),
		       COALESCE(AVG(score::float / NULLIF(total_questions, 0) * 100), 0)
		FROM quiz_results
		WHERE user_id = $1
		GROUP BY quiz_level
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.LevelStats
	for rows.Next() {
		var s models.LevelStats
		if err := rows.Scan(&s.Level, &s.TotalQuizzes, &s.AveragePercentage); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *QuizResultRepository) DeleteByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM quiz_results WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *QuizResultRepository) collectResults(rows pgx.Rows) ([]models.QuizResult, error) {
	var results []models.QuizResult
	for rows.Next() {
		var result models.QuizResult
		if err := rows.Scan(
			&result.ID,
			&result.UserID,
			&result.QuizID,
			&result.QuizLevel,
			&result.Score,
			&result.TotalQuestions,
			&result.Answers,
			&result.CompletedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
