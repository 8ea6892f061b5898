package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"go.ngs.io/postcodes-api/internal/domain"
	"go.ngs.io/postcodes-api/internal/usecase"
)

// distanceEventType labels the audit lines written for distance requests.
const distanceEventType = "get_postalcode_latlong_distance"

// Handler handles HTTP requests for postcode mappings and distances.
type Handler struct {
	postcodeUC *usecase.PostcodeUseCase
	auth       *Authenticator
	logger     *slog.Logger
	timeout    time.Duration
}

// NewHandler creates a new HTTP handler. auth may be nil when login is disabled.
func NewHandler(postcodeUC *usecase.PostcodeUseCase, auth *Authenticator, logger *slog.Logger, timeout time.Duration) *Handler {
	return &Handler{
		postcodeUC: postcodeUC,
		auth:       auth,
		logger:     logger,
		timeout:    timeout,
	}
}

type distanceRequest struct {
	Postcode1 string `json:"postcode1" binding:"required,ukpostcode"`
	Postcode2 string `json:"postcode2" binding:"required,ukpostcode"`
}

type createRequest struct {
	Postcode  string           `json:"postcode" binding:"required,ukpostcode"`
	Latitude  *decimal.Decimal `json:"latitude" binding:"required"`
	Longitude *decimal.Decimal `json:"longitude" binding:"required"`
}

type updateRequest struct {
	Latitude  *decimal.Decimal `json:"latitude" binding:"required"`
	Longitude *decimal.Decimal `json:"longitude" binding:"required"`
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// CalculateDistance handles POST /api/postal-codes/distance.
func (h *Handler) CalculateDistance(c *gin.Context) {
	var req distanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, wrapBindError(err))
		return
	}

	audit := h.logger.With(
		"event", distanceEventType,
		"request_id", requestID(c),
		"postcode1", req.Postcode1,
		"postcode2", req.Postcode2,
	)
	audit.Info("POSTAL_CODE_REQUEST", "state", "REQUEST_RECEIVED")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.postcodeUC.Distance(ctx, req.Postcode1, req.Postcode2)
	if err != nil {
		audit.Info("POSTAL_CODE_REQUEST", "state", "REQUEST_FAILED", "err", err)
		writeError(c, h.logger, err)
		return
	}

	audit.Info("POSTAL_CODE_REQUEST", "state", "REQUEST_COMPLETED", "distance_km", result.Distance)
	c.JSON(http.StatusOK, result)
}

// CreateOrUpdate handles POST /api/postal-codes.
func (h *Handler) CreateOrUpdate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, wrapBindError(err))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	pc, err := h.postcodeUC.CreateOrUpdate(ctx, usecase.MappingRequest{
		Postcode:  req.Postcode,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pc)
}

// GetMapping handles GET /api/postal-codes/:postcode.
func (h *Handler) GetMapping(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	pc, err := h.postcodeUC.GetMapping(ctx, c.Param("postcode"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pc)
}

// UpdateMapping handles PUT /api/postal-codes/:postcode.
func (h *Handler) UpdateMapping(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, wrapBindError(err))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	pc, err := h.postcodeUC.UpdateMapping(ctx, usecase.MappingRequest{
		Postcode:  c.Param("postcode"),
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pc)
}

// ListMappings handles GET /api/postal-codes.
func (h *Handler) ListMappings(c *gin.Context) {
	// Parse query parameters.
	page, err := intQuery(c, "page", 0)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	size, err := intQuery(c, "size", domain.DefaultPageSize)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.postcodeUC.List(ctx, domain.PageRequest{
		PageIndex: page,
		PageSize:  size,
		SortField: c.DefaultQuery("sortBy", domain.SortByPostcode),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", domain.ErrInvalidArgument, key, s)
	}
	return v, nil
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
