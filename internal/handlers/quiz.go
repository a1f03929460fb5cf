package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vorbereitung/api/internal/ids"
	"vorbereitung/api/internal/middleware"
	"vorbereitung/api/internal/models"
)

// hasLevelAccess checks the access flag for one exam level. The user comes
// from the auth middleware, which re-reads the record per request, so a
// grant or revocation applies immediately.
func hasLevelAccess(user models.User, level models.QuizLevel) bool {
	switch level {
	case models.QuizLevelB1:
		return user.AccessB1
	case models.QuizLevelB2:
		return user.AccessB2
	default:
		return false
	}
}

func (h HandlerSet) QuizAccess(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
		return
	}

	level := models.QuizLevel(strings.ToUpper(c.Param("level")))
	if !level.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_level"})
		return
	}

	if !hasLevelAccess(user, level) {
		c.JSON(http.StatusForbidden, gin.H{"error": "access_denied"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Access granted"})
}

type quizResultRequest struct {
	QuizID         string          `json:"quiz_id" binding:"required"`
	QuizLevel      string          `json:"quiz_level" binding:"required"`
	Score          int             `json:"score" binding:"min=0"`
	TotalQuestions int             `json:"total_questions" binding:"required,min=1"`
	Answers        json.RawMessage `json:"answers"`
}

func (h HandlerSet) SaveQuizResult(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
		return
	}

	var req quizResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level := models.QuizLevel(strings.ToUpper(req.QuizLevel))
	if !level.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_level"})
		return
	}
	if !hasLevelAccess(user, level) {
		c.JSON(http.StatusForbidden, gin.H{"error": "access_denied"})
		return
	}

	result := models.QuizResult{
		ID:             ids.New(),
		UserID:         user.ID,
		QuizID:         req.QuizID,
		QuizLevel:      level,
		Score:          req.Score,
		TotalQuestions: req.TotalQuestions,
		Answers:        req.Answers,
	}
	if err := h.results.Create(c.Request.Context(), result); err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("save quiz result failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": result.ID})
}

type quizResultResponse struct {
	ID             string          `json:"id"`
	QuizID         string          `json:"quiz_id"`
	QuizLevel      string          `json:"quiz_level"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"total_questions"`
	Answers        json.RawMessage `json:"answers,omitempty"`
	CompletedAt    time.Time       `json:"completed_at"`
}

func (h HandlerSet) ListQuizResults(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	results, err := h.results.ListByUser(c.Request.Context(), user.ID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("list quiz results failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	items := make([]quizResultResponse, 0, len(results))
	for _, r := range results {
		items = append(items, quizResultResponse{
			ID:             r.ID,
			QuizID:         r.QuizID,
			QuizLevel:      string(r.QuizLevel),
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			Answers:        r.Answers,
			CompletedAt:    r.CompletedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (h HandlerSet) QuizStats(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
		return
	}

	stats, err := h.results.StatsByUser(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("quiz stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats_failed"})
		return
	}

	perLevel := map[string]gin.H{
		string(models.QuizLevelB1): {"total_quizzes": 0, "average_percentage": 0.0},
		string(models.QuizLevelB2): {"total_quizzes": 0, "average_percentage": 0.0},
	}
	totalQuizzes := 0
	sumPercentage := 0.0
	for _, s := range stats {
		perLevel[string(s.Level)] = gin.H{
			"total_quizzes":      s.TotalQuizzes,
			"average_percentage": s.AveragePercentage,
		}
		totalQuizzes += s.TotalQuizzes
		sumPercentage += s.AveragePercentage
	}

	overall := gin.H{"total_quizzes": totalQuizzes, "average_percentage": 0.0}
	if len(stats) > 0 {
		overall["average_percentage"] = sumPercentage / float64(len(stats))
	}

	c.JSON(http.StatusOK, gin.H{
		"B1":      perLevel[string(models.QuizLevelB1)],
		"B2":      perLevel[string(models.QuizLevelB2)],
		"overall": overall,
	})
}
