package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"dommerportal/internal/service"
)

// ContactHandler handles the public contact form
type ContactHandler struct {
	contact *service.ContactService
}

// NewContactHandler creates a new contact handler
func NewContactHandler(contact *service.ContactService) *ContactHandler {
	return &ContactHandler{contact: contact}
}

type contactRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	Website   string `json:"website"`
	StartedAt int64  `json:"started_at"`
}

// Submit forwards a contact form submission to the association
// @Summary Submit contact form
// @Description Forward a message from the public contact form
// @Tags Contact
// @Accept json
// @Produce json
// @Param request body contactRequest true "Contact message"
// @Success 200 {object} map[string]string "Message sent"
// @Failure 400 {object} map[string]string "Invalid or rejected submission"
// @Failure 429 {object} map[string]string "Too many requests"
// @Router /contact [post]
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	input := service.ContactInput{
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Message:   strings.TrimSpace(req.Message),
		Website:   req.Website,
		StartedAt: req.StartedAt,
	}

	if err := h.contact.Submit(input, getIP(r)); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, "Name, email and message are required and length-limited")
		case errors.Is(err, service.ErrSpamSuspected):
			respondWithError(w, http.StatusBadRequest, "Message could not be accepted")
		case errors.Is(err, service.ErrTooManyRequests):
			respondWithError(w, http.StatusTooManyRequests, "Too many messages, try again later")
		default:
			slog.Error("Contact submission failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Message sent",
	})
}
