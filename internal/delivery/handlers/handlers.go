package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Murudula29/Dosemate/internal/domain"
)

// RecordService is the slice of the domain layer the HTTP handlers need.
type RecordService interface {
	CreateRecord(ctx context.Context, params domain.CreateRecordParams) (*domain.Record, *domain.NotificationTask, error)
	UpdateRecord(ctx context.Context, kind domain.EntityKind, id uuid.UUID,
		params domain.UpdateRecordParams) (*domain.Record, *domain.NotificationTask, error)
	DeleteRecord(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (bool, error)
	GetRecord(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (*domain.Record, error)
	GetTask(ctx context.Context, id uuid.UUID) (*domain.NotificationTask, error)
}

type Handler struct {
	service RecordService
}

func NewHandlersSet(service RecordService) *Handler {
	return &Handler{service: service}
}

type CreateRecordRequest struct {
	Title    string `json:"title" validate:"required"`
	Notes    string `json:"notes"`
	Phone    string `json:"phone" validate:"required,e164"`
	RemindAt string `json:"remind_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

type UpdateRecordRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1"`
	Notes    *string `json:"notes"`
	Phone    *string `json:"phone" validate:"omitempty,e164"`
	RemindAt *string `json:"remind_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

var validate = validator.New()

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "e164":
		return "must be a phone number in E.164 format"
	case "datetime":
		return "invalid time format (RFC3339 expected)"
	case "min":
		return "must not be empty"
	default:
		return "invalid value"
	}
}

func validationErrors(c *gin.Context, err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}

	errorsMap := make(map[string]string)
	for _, e := range verrs {
		errorsMap[e.Field()] = validationMessage(e)
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"message": "validation failed",
		"errors":  errorsMap,
	})
	return true
}

// CreateRecordHandler creates a reminder or appointment and schedules its
// notification.
func (h *Handler) CreateRecordHandler(kind domain.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRecordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
			return
		}
		if err := validate.Struct(req); err != nil {
			if validationErrors(c, err) {
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		remindAt, err := time.Parse(time.RFC3339, req.RemindAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "remind_at is not a valid RFC3339 time"})
			return
		}

		record, task, err := h.service.CreateRecord(c.Request.Context(), domain.CreateRecordParams{
			Kind:     kind,
			Title:    req.Title,
			Notes:    req.Notes,
			Phone:    req.Phone,
			RemindAt: remindAt,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"result": recordResponse(record, task)})
	}
}

// GetRecordHandler returns a single record.
func (h *Handler) GetRecordHandler(kind domain.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		record, err := h.service.GetRecord(c.Request.Context(), kind, id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"result": recordResponse(record, nil)})
	}
}

// UpdateRecordHandler updates a record and reschedules its notification.
func (h *Handler) UpdateRecordHandler(kind domain.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		var req UpdateRecordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
			return
		}
		if err := validate.Struct(req); err != nil {
			if validationErrors(c, err) {
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		params := domain.UpdateRecordParams{
			Title: req.Title,
			Notes: req.Notes,
			Phone: req.Phone,
		}
		if req.RemindAt != nil {
			remindAt, err := time.Parse(time.RFC3339, *req.RemindAt)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "remind_at is not a valid RFC3339 time"})
				return
			}
			params.RemindAt = &remindAt
		}

		record, task, err := h.service.UpdateRecord(c.Request.Context(), kind, id, params)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"result": recordResponse(record, task)})
	}
}

// DeleteRecordHandler deletes a record and cancels its notification. When the
// notification already fired, the delete still succeeds and the response says
// so.
func (h *Handler) DeleteRecordHandler(kind domain.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		cancelled, err := h.service.DeleteRecord(c.Request.Context(), kind, id)
		if err != nil {
			respondError(c, err)
			return
		}

		status := "cancelled"
		if !cancelled {
			status = "already sent"
		}
		c.JSON(http.StatusOK, gin.H{"result": gin.H{
			"id":           id.String(),
			"notification": status,
		}})
	}
}

// GetTaskHandler returns the state of a notification task.
func (h *Handler) GetTaskHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	task, err := h.service.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": taskResponse(task)})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is invalid"})
		return uuid.Nil, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrActiveTaskExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyRecipient),
		errors.Is(err, domain.ErrEmptyBody),
		errors.Is(err, domain.ErrZeroScheduleTime),
		errors.Is(err, domain.ErrInvalidEntityKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
