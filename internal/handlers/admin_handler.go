package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"dommerportal/internal/middleware"
	"dommerportal/internal/repository"
	"dommerportal/internal/service"
)

// AdminHandler handles membership administration
type AdminHandler struct {
	members *service.MemberService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(members *service.MemberService) *AdminHandler {
	return &AdminHandler{members: members}
}

// ListPendingMembers lists membership requests awaiting review
// @Summary List pending members
// @Description List all membership requests awaiting an admin decision
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Profile "Pending membership requests"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Router /admin/members/pending [get]
func (h *AdminHandler) ListPendingMembers(w http.ResponseWriter, r *http.Request) {
	pending, err := h.members.ListPendingMembers()
	if err != nil {
		slog.Error("Failed to list pending members", "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, pending)
}

// ApproveMember grants membership to a pending request
// @Summary Approve member
// @Description Approve a pending membership request
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string "Membership approved"
// @Failure 400 {object} map[string]string "Invalid user ID"
// @Failure 404 {object} map[string]string "Profile not found"
// @Router /admin/members/{id}/approve [post]
func (h *AdminHandler) ApproveMember(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	userID, err := parseUserID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.members.ApproveMember(adminID, userID); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			respondWithError(w, http.StatusNotFound, ErrMsgProfileNotFound)
			return
		}
		slog.Error("Failed to approve member", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Membership approved",
	})
}

type rejectMemberRequest struct {
	Reason string `json:"reason"`
}

// RejectMember turns a pending membership request down
// @Summary Reject member
// @Description Reject a pending membership request with an optional reason
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body rejectMemberRequest false "Rejection reason"
// @Success 200 {object} map[string]string "Membership rejected"
// @Failure 400 {object} map[string]string "Invalid user ID"
// @Failure 404 {object} map[string]string "Profile not found"
// @Router /admin/members/{id}/reject [post]
func (h *AdminHandler) RejectMember(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	userID, err := parseUserID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req rejectMemberRequest
	// Body is optional; a rejection without reason is allowed
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.members.RejectMember(adminID, userID, req.Reason); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			respondWithError(w, http.StatusNotFound, ErrMsgProfileNotFound)
			return
		}
		slog.Error("Failed to reject member", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Membership rejected",
	})
}

func parseUserID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
