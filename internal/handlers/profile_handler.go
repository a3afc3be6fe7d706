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

// ProfileHandler handles the member's own profile
type ProfileHandler struct {
	members *service.MemberService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(members *service.MemberService) *ProfileHandler {
	return &ProfileHandler{members: members}
}

// GetProfile gets the current member's profile
// @Summary Get own profile
// @Description Get the authenticated member's judge profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile "Judge profile"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Profile not found"
// @Router /profile [get]
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	profile, err := h.members.GetProfile(userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			respondWithError(w, http.StatusNotFound, ErrMsgProfileNotFound)
			return
		}
		slog.Error("Failed to load profile", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}

type profileUpdateRequest struct {
	FullName      string  `json:"full_name"`
	Birthday      *string `json:"birthday,omitempty"`
	JudgeLevel    *string `json:"judge_level,omitempty"`
	JudgeStart    *int    `json:"judge_start,omitempty"`
	RiderDistrict *string `json:"rider_district,omitempty"`
}

// UpdateProfile updates the current member's profile
// @Summary Update own profile
// @Description Update the member-editable fields of the judge profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body profileUpdateRequest true "Profile fields"
// @Success 200 {object} models.Profile "Updated profile"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /profile [put]
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" {
		respondWithError(w, http.StatusBadRequest, "Full name is required")
		return
	}

	var birthday *time.Time
	if req.Birthday != nil && *req.Birthday != "" {
		parsed, err := time.Parse("2006-01-02", *req.Birthday)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid birthday format, expected YYYY-MM-DD")
			return
		}
		birthday = &parsed
	}

	profile, err := h.members.UpdateProfile(userID, service.ProfileInput{
		FullName:      req.FullName,
		Birthday:      birthday,
		JudgeLevel:    req.JudgeLevel,
		JudgeStart:    req.JudgeStart,
		RiderDistrict: req.RiderDistrict,
	})
	if err != nil {
		slog.Error("Failed to update profile", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}
