package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"dommerportal/internal/middleware"
	"dommerportal/internal/repository"
)

// NotificationHandler handles in-app notifications
type NotificationHandler struct {
	notifications *repository.NotificationRepository
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List lists the member's notifications
// @Summary List notifications
// @Description List the authenticated member's notifications, newest first
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Notification "Notifications"
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	notifications, err := h.notifications.ListByUser(userID)
	if err != nil {
		slog.Error("Failed to list notifications", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, notifications)
}

// MarkRead marks one of the member's notifications as read
// @Summary Mark notification read
// @Description Mark a notification as read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} map[string]string "Notification marked read"
// @Failure 404 {object} map[string]string "Notification not found"
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	if err := h.notifications.MarkRead(r.PathValue("id"), userID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			respondWithError(w, http.StatusNotFound, "Notification not found")
			return
		}
		slog.Error("Failed to mark notification read", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Notification marked read",
	})
}
