package middleware

import (
	"database/sql"
	"net/http"

	"dommerportal/internal/repository"
)

// RBACMiddleware gates routes on the caller's judge profile. Membership
// approval acts as the coarse permission: most routes require an approved
// profile, admin routes additionally require the admin role.
type RBACMiddleware struct {
	profileRepo *repository.ProfileRepository
}

// NewRBACMiddleware creates a new RBAC middleware
func NewRBACMiddleware(db *sql.DB) *RBACMiddleware {
	return &RBACMiddleware{
		profileRepo: repository.NewProfileRepository(db),
	}
}

// RequireApproved allows only users whose membership has been approved
func (m *RBACMiddleware) RequireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		profile, err := m.profileRepo.GetByUserID(userID)
		if err != nil {
			respondWithError(w, http.StatusForbidden, "No profile found")
			return
		}

		if profile.ApprovalStatus != "approved" {
			respondWithError(w, http.StatusForbidden, "Membership not approved")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows only approved admins
func (m *RBACMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		profile, err := m.profileRepo.GetByUserID(userID)
		if err != nil {
			respondWithError(w, http.StatusForbidden, "No profile found")
			return
		}

		if !profile.IsAdmin() {
			respondWithError(w, http.StatusForbidden, "Insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}
