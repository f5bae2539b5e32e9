package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
)

const (
	defaultActivityLimit = 20
	defaultTrendDays     = 7
	defaultTrendHours    = 24
)

// Service is the read side of a running monitor
type Service interface {
	Status() domain.RepoStatus
	Activity(limit int) []*domain.ActivityEvent
	Trend(days int) (*domain.Trend, error)
	HourlyTrend(hours int) (*domain.Trend, error)
	Export() *domain.Export
}

// Handler handles API requests
type Handler struct {
	service Service
}

// NewHandler creates a new API handler
func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// GetStatus returns the monitor status
// GET /api/v1/status
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.service.Status(),
	})
}

// GetActivity returns recent star events, newest first
// GET /api/v1/activity?limit=
func (h *Handler) GetActivity(c *gin.Context) {
	limit, err := parseIntQuery(c, "limit", defaultActivityLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": h.service.Activity(limit),
	})
}

// GetTrend returns the daily gained/lost series
// GET /api/v1/trend?days=
func (h *Handler) GetTrend(c *gin.Context) {
	days, err := parseIntQuery(c, "days", defaultTrendDays)
	if err != nil {
		respondError(c, err)
		return
	}

	trend, err := h.service.Trend(days)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": trend,
	})
}

// GetHourlyTrend returns the hourly gained/lost series
// GET /api/v1/trend/hourly?hours=
func (h *Handler) GetHourlyTrend(c *gin.Context) {
	hours, err := parseIntQuery(c, "hours", defaultTrendHours)
	if err != nil {
		respondError(c, err)
		return
	}

	trend, err := h.service.HourlyTrend(hours)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": trend,
	})
}

// GetExport returns the snapshot, counters and activity history
// GET /api/v1/export
func (h *Handler) GetExport(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.service.Export(),
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"phase":  h.service.Status().Phase,
	})
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(c *gin.Context, key string, defaultValue int) (int, error) {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, apperrors.NewBadRequestError(fmt.Sprintf("%s must be an integer", key))
	}
	return value, nil
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apperrors.ErrCodeForbidden:
			status = http.StatusForbidden
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	})
}
