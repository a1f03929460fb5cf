package models

import "time"

type QuizLevel string

const (
	QuizLevelB1 QuizLevel = "B1"
	QuizLevelB2 QuizLevel = "B2"
)

func (l QuizLevel) Valid() bool {
	return l == QuizLevelB1 || l == QuizLevelB2
}

type QuizResult struct {
	ID             string
	UserID         string
	QuizID         string
	QuizLevel      QuizLevel
	Score          int
	TotalQuestions int
	Answers        []byte
	CompletedAt    time.Time
}

// LevelStats aggregates a user's results for one level.
type LevelStats struct {
	Level             QuizLevel
	TotalQuizzes      int
	AveragePercentage float64
}
