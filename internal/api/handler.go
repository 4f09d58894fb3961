package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/aggregator"
	apperrors "github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/errors"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
)

// Handler handles API requests
type Handler struct {
	storage    storage.Storage
	aggregator aggregator.Aggregator
}

// NewHandler creates a new API handler
func NewHandler(st storage.Storage, agg aggregator.Aggregator) *Handler {
	return &Handler{
		storage:    st,
		aggregator: agg,
	}
}

// ListTickets returns stored ticket summaries
// GET /api/v1/tickets?channel=&sat_score=&limit=&offset=
func (h *Handler) ListTickets(c *gin.Context) {
	filter := storage.TicketFilter{
		Channel:  c.Query("channel"),
		SatScore: c.Query("sat_score"),
		Limit:    parseIntQuery(c, "limit", 100),
		Offset:   parseIntQuery(c, "offset", 0),
	}

	tickets, err := h.storage.GetTickets(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": tickets,
		"pagination": gin.H{
			"limit":  filter.Limit,
			"offset": filter.Offset,
			"count":  len(tickets),
		},
	})
}

// GetTicket returns one ticket summary
// GET /api/v1/tickets/:id
func (h *Handler) GetTicket(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ticket, err := h.storage.GetTicket(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": ticket,
	})
}

// GetTicketMetrics returns the lifecycle metrics of one ticket
// GET /api/v1/tickets/:id/metrics
func (h *Handler) GetTicketMetrics(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	metrics, err := h.storage.GetMetrics(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": metrics,
	})
}

// GetTicketComments returns the comments of one ticket, oldest first
// GET /api/v1/tickets/:id/comments
func (h *Handler) GetTicketComments(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	comments, err := h.storage.GetComments(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": comments,
	})
}

// GetSatisfactionSummary returns the overall satisfaction summary
// GET /api/v1/satisfaction/summary
func (h *Handler) GetSatisfactionSummary(c *gin.Context) {
	summary, err := h.aggregator.SatisfactionSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": summary,
	})
}

// GetChannelBreakdown returns satisfaction per intake channel
// GET /api/v1/satisfaction/channels
func (h *Handler) GetChannelBreakdown(c *gin.Context) {
	channels, err := h.aggregator.ChannelBreakdown(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": channels,
	})
}

// ListRuns returns recent collection runs
// GET /api/v1/runs?limit=
func (h *Handler) ListRuns(c *gin.Context) {
	runs, err := h.storage.ListRuns(c.Request.Context(), parseIntQuery(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": runs,
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

// parseID reads the :id path parameter, responding 400 when invalid
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperrors.NewBadRequestError("invalid ticket id"))
		return 0, false
	}
	return id, true
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
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
		case apperrors.ErrCodeUpstream, apperrors.ErrCodeMalformed:
			status = http.StatusBadGateway
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
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
