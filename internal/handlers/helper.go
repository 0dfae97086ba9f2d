package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
)

// ParseSessionIDParam reads a session ID path parameter, writing a 400 when it is not a UUID.
func ParseSessionIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	if _, err := uuid.Parse(idStr); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID must be a UUID",
		})
		return ""
	}
	return idStr
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return defaultValue
}

// parseAttemptFilters reads history filters; page and size are 1-based paging.
func parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	size := parseIntQuery(c, "size", 20)

	filters := repositories.AttemptFilters{
		Subject:   c.Query("subject"),
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if kind := c.Query("kind"); kind != "" {
		k := models.QuestionKind(kind)
		filters.Kind = &k
	}
	if difficulty := c.Query("difficulty"); difficulty != "" {
		d := models.DifficultyLevel(difficulty)
		filters.Difficulty = &d
	}
	if correct, err := strconv.ParseBool(c.Query("is_correct")); err == nil {
		filters.IsCorrect = &correct
	}
	if from, err := time.Parse(time.DateOnly, c.Query("date_from")); err == nil {
		filters.DateFrom = &from
	}
	if to, err := time.Parse(time.DateOnly, c.Query("date_to")); err == nil {
		// inclusive of the whole day
		end := to.Add(24*time.Hour - time.Nanosecond)
		filters.DateTo = &end
	}

	return filters
}
