package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dommerportal/internal/auth"
	"dommerportal/internal/middleware"
	"dommerportal/internal/service"
)

// AuthHandler handles signup, login and logout
type AuthHandler struct {
	members *service.MemberService
	authSvc *auth.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(members *service.MemberService, authSvc *auth.Service) *AuthHandler {
	return &AuthHandler{
		members: members,
		authSvc: authSvc,
	}
}

type signupRequest struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	FullName      string  `json:"full_name"`
	Birthday      *string `json:"birthday,omitempty"`
	JudgeLevel    *string `json:"judge_level,omitempty"`
	JudgeStart    *int    `json:"judge_start,omitempty"`
	RiderDistrict *string `json:"rider_district,omitempty"`
}

// Signup registers a new membership request
// @Summary Request membership
// @Description Create an account and a judge profile awaiting admin approval
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body signupRequest true "Membership request"
// @Success 201 {object} map[string]interface{} "Account created, approval pending"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 409 {object} map[string]string "Email already registered"
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		respondWithError(w, http.StatusBadRequest, "Email, password and full name are required")
		return
	}
	if len(req.Password) < 8 {
		respondWithError(w, http.StatusBadRequest, "Password must be at least 8 characters")
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

	user, profile, err := h.members.Signup(service.SignupInput{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Birthday:      birthday,
		JudgeLevel:    req.JudgeLevel,
		JudgeStart:    req.JudgeStart,
		RiderDistrict: req.RiderDistrict,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			respondWithError(w, http.StatusConflict, "Email address is already registered")
			return
		}
		slog.Error("Signup failed", "email", req.Email, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id":         user.ID,
		"email":           user.Email,
		"full_name":       profile.FullName,
		"approval_status": profile.ApprovalStatus,
		"message":         "Membership request received and awaiting approval",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a member
// @Summary Log in
// @Description Verify credentials and open a session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} map[string]interface{} "Token and profile"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	token, user, profile, err := h.members.Login(req.Email, req.Password, getIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		slog.Error("Login failed", "email", req.Email, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	slog.Info("User logged in", "user_id", user.ID, "ip", getIP(r))

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":              user.ID,
			"email":           user.Email,
			"full_name":       profile.FullName,
			"role":            profile.Role,
			"approval_status": profile.ApprovalStatus,
		},
	})
}

// Logout invalidates the current session
// @Summary Log out
// @Description Invalidate the session behind the presented token
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logged out"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token != "" && token != authHeader {
		if jti, err := h.authSvc.ExtractJTI(token); err == nil {
			if err := h.members.Logout(jti); err != nil {
				slog.Warn("Failed to invalidate session", "error", err)
			}
		}
	}

	if userID, ok := middleware.GetUserID(r); ok {
		slog.Info("User logged out", "user_id", userID, "ip", getIP(r))
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// LogoutAll invalidates every session of the current user
// @Summary Log out everywhere
// @Description Invalidate all sessions of the authenticated user
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Sessions invalidated"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	if err := h.members.LogoutAll(userID); err != nil {
		slog.Error("Failed to invalidate sessions", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "All sessions invalidated",
	})
}
