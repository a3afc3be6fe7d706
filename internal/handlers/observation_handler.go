package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dommerportal/internal/middleware"
	"dommerportal/internal/repository"
	"dommerportal/internal/service"
)

// ObservationHandler handles the bisitting approval workflow
type ObservationHandler struct {
	observations *service.ObservationService
}

// NewObservationHandler creates a new observation handler
func NewObservationHandler(observations *service.ObservationService) *ObservationHandler {
	return &ObservationHandler{observations: observations}
}

type observationRequest struct {
	ObservationDate string  `json:"observation_date"`
	Location        string  `json:"location"`
	ClassLevel      *string `json:"class_level,omitempty"`
	NumberOfHorses  *int    `json:"number_of_horses,omitempty"`
	ResultListURL   *string `json:"result_list_url,omitempty"`
	HostName        string  `json:"host_name"`
}

func (req *observationRequest) toInput() (service.ObservationInput, error) {
	date, err := time.Parse("2006-01-02", req.ObservationDate)
	if err != nil {
		return service.ObservationInput{}, err
	}
	return service.ObservationInput{
		ObservationDate: date,
		Location:        strings.TrimSpace(req.Location),
		ClassLevel:      req.ClassLevel,
		NumberOfHorses:  req.NumberOfHorses,
		ResultListURL:   req.ResultListURL,
		HostName:        strings.TrimSpace(req.HostName),
	}, nil
}

// Create registers a new observation
// @Summary Create observation
// @Description Register a bisitting in the year of its date. A host who is
// @Description a member gets an in-app approval request.
// @Tags Observations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body observationRequest true "Observation"
// @Success 201 {object} models.Observation "Created observation"
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /observations [post]
func (h *ObservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid observation date, expected YYYY-MM-DD")
		return
	}
	if input.Location == "" || input.HostName == "" {
		respondWithError(w, http.StatusBadRequest, "Location and host name are required")
		return
	}

	obs, err := h.observations.Create(userID, input)
	if err != nil {
		h.respondObservationError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusCreated, obs)
}

// Update edits an observation
// @Summary Update observation
// @Description Edit a pending or rejected observation. Editing a rejected
// @Description one resubmits it for host approval.
// @Tags Observations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation ID"
// @Param request body observationRequest true "Observation"
// @Success 200 {object} models.Observation "Updated observation"
// @Failure 409 {object} map[string]string "Observation already approved"
// @Router /observations/{id} [put]
func (h *ObservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid observation date, expected YYYY-MM-DD")
		return
	}

	obs, err := h.observations.Update(userID, r.PathValue("id"), input)
	if err != nil {
		h.respondObservationError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusOK, obs)
}

// Delete removes an observation that has not been approved
// @Summary Delete observation
// @Description Delete a pending or rejected observation
// @Tags Observations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation ID"
// @Success 200 {object} map[string]string "Observation deleted"
// @Failure 409 {object} map[string]string "Observation already approved"
// @Router /observations/{id} [delete]
func (h *ObservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	if err := h.observations.Delete(userID, r.PathValue("id")); err != nil {
		h.respondObservationError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Observation deleted",
	})
}

// ListYears lists the member's observation years
// @Summary List observation years
// @Description List the authenticated member's observation years, newest first
// @Tags Observations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ObservationYear "Observation years"
// @Router /observations/years [get]
func (h *ObservationHandler) ListYears(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	years, err := h.observations.ListYears(userID)
	if err != nil {
		slog.Error("Failed to list observation years", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, years)
}

// ListByYear lists the observations in one of the member's years
// @Summary List observations in a year
// @Description List observations in one of the member's observation years
// @Tags Observations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation year ID"
// @Success 200 {array} models.Observation "Observations"
// @Failure 403 {object} map[string]string "Access denied"
// @Router /observations/years/{id} [get]
func (h *ObservationHandler) ListByYear(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	observations, err := h.observations.ListByYear(userID, r.PathValue("id"))
	if err != nil {
		h.respondObservationError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusOK, observations)
}

// ListPendingApprovals lists observations waiting for the member's decision
// @Summary List pending approvals
// @Description List observations where the authenticated member is the host
// @Description and a decision is outstanding
// @Tags Observations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Observation "Pending observations"
// @Router /observations/approvals [get]
func (h *ObservationHandler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	observations, err := h.observations.ListPendingForHost(userID)
	if err != nil {
		slog.Error("Failed to list pending approvals", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, observations)
}

// Approve confirms an observation as its host
// @Summary Approve observation
// @Description Confirm a bisitting as its host
// @Tags Observations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation ID"
// @Success 200 {object} models.Observation "Approved observation"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 409 {object} map[string]string "Already decided"
// @Router /observations/{id}/approve [post]
func (h *ObservationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	obs, err := h.observations.Approve(userID, r.PathValue("id"))
	if err != nil {
		h.respondObservationError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusOK, obs)
}

type rejectObservationRequest struct {
	Comment string `json:"comment"`
}

// Reject turns an observation down as its host
// @Summary Reject observation
// @Description Reject a bisitting with a mandatory comment
// @Tags Observations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation ID"
// @Param request body rejectObservationRequest true "Rejection comment"
// @Success 200 {object} models.Observation "Rejected observation"
// @Failure 400 {object} map[string]string "Comment required"
// @Failure 409 {object} map[string]string "Already decided"
// @Router /observations/{id}/reject [post]
func (h *ObservationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req rejectObservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	obs, err := h.observations.Reject(userID, r.PathValue("id"), strings.TrimSpace(req.Comment))
	if err != nil {
		h.respondObservationError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusOK, obs)
}

type yearStatusRequest struct {
	Status string `json:"status"`
}

// SetYearStatus moves an observation year through its lifecycle
// @Summary Set observation year status
// @Description Open, close or mark submitted an observation year. A year
// @Description that is not open locks its entries against member edits.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation year ID"
// @Param request body yearStatusRequest true "New status"
// @Success 200 {object} models.ObservationYear "Updated year"
// @Failure 400 {object} map[string]string "Unknown status"
// @Failure 404 {object} map[string]string "Year not found"
// @Router /admin/observations/years/{id}/status [put]
func (h *ObservationHandler) SetYearStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req yearStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	year, err := h.observations.SetYearStatus(r.PathValue("id"), strings.TrimSpace(req.Status))
	if err != nil {
		h.respondObservationError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusOK, year)
}

func (h *ObservationHandler) respondObservationError(w http.ResponseWriter, err error, userID uint) {
	switch {
	case errors.Is(err, repository.ErrObservationNotFound),
		errors.Is(err, repository.ErrObservationYearNotFound):
		respondWithError(w, http.StatusNotFound, ErrMsgObservationNotFound)
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, ErrMsgForbidden)
	case errors.Is(err, service.ErrCommentRequired):
		respondWithError(w, http.StatusBadRequest, "A rejection comment is required")
	case errors.Is(err, service.ErrYearStatusUnknown):
		respondWithError(w, http.StatusBadRequest, "Unknown observation year status")
	case errors.Is(err, service.ErrObservationDecided):
		respondWithError(w, http.StatusConflict, "Observation has already been decided")
	case errors.Is(err, service.ErrObservationApproved):
		respondWithError(w, http.StatusConflict, "Approved observations cannot be changed")
	case errors.Is(err, service.ErrYearClosed):
		respondWithError(w, http.StatusConflict, "Observation year is closed")
	default:
		slog.Error("Observation operation failed", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
	}
}
