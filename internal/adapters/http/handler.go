package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"github.com/sentryops/bypassguard/internal/domain/service"
)

const timestampFormat = time.RFC3339

// defaultValidationComment is substituted when a validator submits an empty
// comment; the transition engine itself always requires one.
const defaultValidationComment = "RAS"

// Handler handles HTTP requests for the bypass guard service
type Handler struct {
	bypassService ports.BypassService
	db            ports.DatabaseAdapter
}

// NewHandler creates a new HTTP handler
func NewHandler(bypassService ports.BypassService, db ports.DatabaseAdapter) *Handler {
	return &Handler{
		bypassService: bypassService,
		db:            db,
	}
}

// SubmitRequest handles POST /api/v1/requests
func (h *Handler) SubmitRequest(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	startTime, err := time.Parse(timestampFormat, req.StartTime)
	if err != nil {
		badRequest(c, "start_time must be RFC 3339")
		return
	}
	endTime, err := time.Parse(timestampFormat, req.EndTime)
	if err != nil {
		badRequest(c, "end_time must be RFC 3339")
		return
	}

	request, err := h.bypassService.Submit(c.Request.Context(), ports.SubmitInput{
		RequesterID:                req.RequesterID,
		EquipmentID:                req.EquipmentID,
		SensorID:                   req.SensorID,
		Reason:                     req.Title,
		Description:                req.Description,
		Priority:                   req.Priority,
		StartTime:                  startTime,
		EndTime:                    endTime,
		SafetyImpact:               req.SafetyImpact,
		OperationalImpact:          req.OperationalImpact,
		EnvironmentalImpact:        req.EnvironmentalImpact,
		Mitigations:                req.Mitigations,
		SafetyAcknowledged:         req.SafetyAcknowledged,
		ResponsibilityAcknowledged: req.ResponsibilityAcknowledged,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRequestResponse(request))
}

// GetRequest handles GET /api/v1/requests/:id
func (h *Handler) GetRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	request, err := h.bypassService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRequestResponse(request))
}

// ListRequests handles GET /api/v1/requests
func (h *Handler) ListRequests(c *gin.Context) {
	offset := queryInt(c, "offset", 0)
	limit := queryInt(c, "limit", 100)
	status := models.RequestStatus(c.Query("status"))

	requests, err := h.bypassService.List(c.Request.Context(), status, offset, limit)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	responses := make([]RequestResponse, 0, len(requests))
	for _, request := range requests {
		responses = append(responses, toRequestResponse(request))
	}

	c.JSON(http.StatusOK, responses)
}

// ValidateRequest handles POST /api/v1/requests/:id/validate
func (h *Handler) ValidateRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	comment := req.ValidationComment
	if comment == "" && req.ValidationStatus == models.DecisionRejected && req.RejectionReason != nil {
		comment = *req.RejectionReason
	}
	if comment == "" {
		comment = defaultValidationComment
	}

	request, err := h.bypassService.Validate(c.Request.Context(), id, req.ValidatorID, req.ValidationStatus, comment)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRequestResponse(request))
}

// CancelRequest handles POST /api/v1/requests/:id/cancel
func (h *Handler) CancelRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.bypassService.Cancel(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "request cancelled"})
}

// GetSensor handles GET /api/v1/sensors/:id
func (h *Handler) GetSensor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	sensor, err := h.db.GetSensorRepository().GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			notFound(c, "Sensor not found")
			return
		}
		internalError(c, "Failed to retrieve sensor")
		return
	}

	c.JSON(http.StatusOK, toSensorResponse(sensor))
}

// UpdateSensorStatus handles PUT /api/v1/sensors/:id/status. This is the
// administrative path for manual sensor reactivation after a bypass window
// closes.
func (h *Handler) UpdateSensorStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req SensorStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := models.ValidateSensorStatus(req.Status); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.db.GetSensorRepository().UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			notFound(c, "Sensor not found")
			return
		}
		internalError(c, "Failed to update sensor status")
		return
	}

	sensor, err := h.db.GetSensorRepository().GetByID(c.Request.Context(), id)
	if err != nil {
		internalError(c, "Failed to reload sensor")
		return
	}

	c.JSON(http.StatusOK, toSensorResponse(sensor))
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.db.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "bypassguard",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "bypassguard",
	})
}

// writeServiceError maps service and domain errors onto HTTP statuses
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRequestNotFound),
		errors.Is(err, service.ErrSensorNotFound),
		errors.Is(err, service.ErrUserNotFound):
		notFound(c, err.Error())

	case errors.Is(err, service.ErrConflict),
		errors.Is(err, models.ErrRequestNotPending):
		c.JSON(http.StatusConflict, ProblemDetails{
			Type:   "about:blank",
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: err.Error(),
		})

	case errors.Is(err, models.ErrValidatorForbidden):
		c.JSON(http.StatusForbidden, ProblemDetails{
			Type:   "about:blank",
			Title:  "Forbidden",
			Status: http.StatusForbidden,
			Detail: err.Error(),
		})

	case errors.Is(err, models.ErrInvalidWindow),
		errors.Is(err, models.ErrInvalidReason),
		errors.Is(err, models.ErrInvalidPriority),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrInvalidDecision),
		errors.Is(err, models.ErrNoMitigations),
		errors.Is(err, models.ErrAcknowledgements),
		errors.Is(err, models.ErrCommentRequired):
		badRequest(c, err.Error())

	default:
		internalError(c, "Internal error")
	}
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:   "about:blank",
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
		Detail: detail,
	})
}

func notFound(c *gin.Context, detail string) {
	c.JSON(http.StatusNotFound, ProblemDetails{
		Type:   "about:blank",
		Title:  "Not Found",
		Status: http.StatusNotFound,
		Detail: detail,
	})
}

func internalError(c *gin.Context, detail string) {
	c.JSON(http.StatusInternalServerError, ProblemDetails{
		Type:   "about:blank",
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
		Detail: detail,
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "id must be an integer")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func toRequestResponse(request *models.BypassRequest) RequestResponse {
	response := RequestResponse{
		ID:                  request.ID,
		RequestCode:         request.RequestCode,
		RequesterID:         request.RequesterID,
		EquipmentID:         request.EquipmentID,
		SensorID:            request.SensorID,
		Title:               request.Title,
		TitleLabel:          request.Title.Label(),
		Description:         request.Description,
		Priority:            request.Priority,
		SafetyImpact:        request.SafetyImpact,
		OperationalImpact:   request.OperationalImpact,
		EnvironmentalImpact: request.EnvironmentalImpact,
		Mitigations:         request.Mitigations,
		StartTime:           request.StartTime.Format(timestampFormat),
		EndTime:             request.EndTime.Format(timestampFormat),
		CreatedAt:           request.CreatedAt.Format(timestampFormat),
		Status:              request.Status,
		ValidatorID:         request.ValidatorID,
		ValidationComment:   request.ValidationComment,
		RejectionReason:     request.RejectionReason,
	}

	if request.ValidatedAt != nil {
		validatedAt := request.ValidatedAt.Format(timestampFormat)
		response.ValidatedAt = &validatedAt
	}

	return response
}

func toSensorResponse(sensor *models.Sensor) SensorResponse {
	return SensorResponse{
		ID:          sensor.ID,
		EquipmentID: sensor.EquipmentID,
		Name:        sensor.Name,
		Tag:         sensor.Tag,
		Status:      sensor.Status,
		LastUpdated: sensor.LastUpdated.Format(timestampFormat),
	}
}
