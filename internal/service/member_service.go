package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dommerportal/internal/models"
	"dommerportal/internal/repository"
)

var (
	// ErrEmailTaken is returned when a signup reuses an existing address
	ErrEmailTaken = errors.New("email address is already registered")
	// ErrInvalidCredentials is returned on failed logins
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// UserStore is the persistence surface for user accounts
type UserStore interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	EmailExists(email string) (bool, error)
	Delete(id uint) error
}

// ProfileStore is the persistence surface for judge profiles
type ProfileStore interface {
	Create(profile *models.Profile) error
	GetByUserID(userID uint) (*models.Profile, error)
	Update(profile *models.Profile) error
	ListPending() ([]models.Profile, error)
	SetApproval(userID uint, status string, reviewedBy uint, rejectionReason *string) error
}

// SessionStore is the persistence surface for login sessions
type SessionStore interface {
	Create(session *models.Session) error
	DeleteByJTI(jti string) error
	DeleteAllForUser(userID uint) error
}

// TokenIssuer creates and hashes credentials
type TokenIssuer interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hashedPassword, password string) error
	GenerateToken(userID uint, email string) (string, string, error)
	TokenTTL() time.Duration
}

// SignupInput carries a membership request
type SignupInput struct {
	Email         string
	Password      string
	FullName      string
	Birthday      *time.Time
	JudgeLevel    *string
	JudgeStart    *int
	RiderDistrict *string
}

// ProfileInput carries the member-editable profile fields
type ProfileInput struct {
	FullName      string
	Birthday      *time.Time
	JudgeLevel    *string
	JudgeStart    *int
	RiderDistrict *string
}

// MemberService implements signup, login and membership administration
type MemberService struct {
	users    UserStore
	profiles ProfileStore
	sessions SessionStore
	tokens   TokenIssuer
}

// NewMemberService creates a new member service
func NewMemberService(users UserStore, profiles ProfileStore, sessions SessionStore, tokens TokenIssuer) *MemberService {
	return &MemberService{
		users:    users,
		profiles: profiles,
		sessions: sessions,
		tokens:   tokens,
	}
}

// Signup creates an account with a pending membership request. The account
// only survives if the profile insert succeeds too.
func (s *MemberService) Signup(input SignupInput) (*models.User, *models.Profile, error) {
	exists, err := s.users.EmailExists(input.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, nil, ErrEmailTaken
	}

	hash, err := s.tokens.HashPassword(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(user); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	profile := &models.Profile{
		UserID:         user.ID,
		FullName:       input.FullName,
		Birthday:       input.Birthday,
		JudgeLevel:     input.JudgeLevel,
		JudgeStart:     input.JudgeStart,
		RiderDistrict:  input.RiderDistrict,
		ApprovalStatus: models.StatusPending,
		Role:           models.RoleUser,
	}
	if err := s.profiles.Create(profile); err != nil {
		if cleanupErr := s.users.Delete(user.ID); cleanupErr != nil {
			slog.Error("Failed to roll back user after profile error",
				"user_id", user.ID,
				"error", cleanupErr,
			)
		}
		return nil, nil, fmt.Errorf("failed to create profile: %w", err)
	}

	slog.Info("Membership requested", "user_id", user.ID, "email", user.Email)
	return user, profile, nil
}

// Login verifies credentials and opens a session. Members awaiting approval
// can log in; approval only gates the member features.
func (s *MemberService) Login(loginEmail, password, ipAddress, userAgent string) (string, *models.User, *models.Profile, error) {
	user, err := s.users.GetByEmail(loginEmail)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, nil, ErrInvalidCredentials
		}
		return "", nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.tokens.VerifyPassword(user.PasswordHash, password); err != nil {
		return "", nil, nil, ErrInvalidCredentials
	}

	token, jti, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to generate token: %w", err)
	}

	session := &models.Session{
		JTI:       jti,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.tokens.TokenTTL()),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := s.sessions.Create(session); err != nil {
		return "", nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	profile, err := s.profiles.GetByUserID(user.ID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return token, user, profile, nil
}

// Logout invalidates the session behind the given token JTI
func (s *MemberService) Logout(jti string) error {
	return s.sessions.DeleteByJTI(jti)
}

// LogoutAll invalidates every session of the user
func (s *MemberService) LogoutAll(userID uint) error {
	return s.sessions.DeleteAllForUser(userID)
}

// GetProfile returns the member's profile
func (s *MemberService) GetProfile(userID uint) (*models.Profile, error) {
	return s.profiles.GetByUserID(userID)
}

// UpdateProfile updates the member-editable profile fields
func (s *MemberService) UpdateProfile(userID uint, input ProfileInput) (*models.Profile, error) {
	profile, err := s.profiles.GetByUserID(userID)
	if err != nil {
		return nil, err
	}

	profile.FullName = input.FullName
	profile.Birthday = input.Birthday
	profile.JudgeLevel = input.JudgeLevel
	profile.JudgeStart = input.JudgeStart
	profile.RiderDistrict = input.RiderDistrict

	if err := s.profiles.Update(profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return profile, nil
}

// ListPendingMembers returns all membership requests awaiting review
func (s *MemberService) ListPendingMembers() ([]models.Profile, error) {
	return s.profiles.ListPending()
}

// ApproveMember grants membership
func (s *MemberService) ApproveMember(adminID, userID uint) error {
	if err := s.profiles.SetApproval(userID, models.StatusApproved, adminID, nil); err != nil {
		return err
	}
	slog.Info("Membership approved", "user_id", userID, "reviewed_by", adminID)
	return nil
}

// RejectMember turns a membership request down
func (s *MemberService) RejectMember(adminID, userID uint, reason string) error {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.profiles.SetApproval(userID, models.StatusRejected, adminID, reasonPtr); err != nil {
		return err
	}
	slog.Info("Membership rejected", "user_id", userID, "reviewed_by", adminID)
	return nil
}
