package transport

import (
	"errors"
	"net/http"

	"github.com/ds124wfegd/notification-engine/internal/entity"
	"github.com/ds124wfegd/notification-engine/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

type actionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *NotificationHandler) Publish(c *gin.Context) {
	var req entity.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notification, err := h.service.Publish(c.Request.Context(), &req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, notification)
}

func (h *NotificationHandler) GetNotification(c *gin.Context) {
	id := c.Param("id")

	notification, err := h.service.GetNotification(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, notification)
}

func (h *NotificationHandler) FetchPending(c *gin.Context) {
	userID := c.Query("user_id")
	role := c.Query("role")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	pending, err := h.service.FetchPending(c.Request.Context(), userID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": pending,
		"count":         len(pending),
	})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.service.MarkAsRead(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func (h *NotificationHandler) Acknowledge(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.service.Acknowledge(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func (h *NotificationHandler) Dismiss(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Dismiss(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification dismissed"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrNotCritical),
		errors.Is(err, entity.ErrNotDismissible),
		errors.Is(err, entity.ErrRepeatCapped):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInvalidTarget),
		errors.Is(err, entity.ErrInvalidPriority),
		errors.Is(err, entity.ErrInvalidExpiry),
		errors.Is(err, entity.ErrInvalidRepeat),
		errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
