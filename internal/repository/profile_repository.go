package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dommerportal/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository handles judge profile database operations
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `user_id, full_name, birthday, judge_level, judge_start, rider_district,
	approval_status, role, requested_at, reviewed_at, reviewed_by, rejection_reason, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(
		&p.UserID,
		&p.FullName,
		&p.Birthday,
		&p.JudgeLevel,
		&p.JudgeStart,
		&p.RiderDistrict,
		&p.ApprovalStatus,
		&p.Role,
		&p.RequestedAt,
		&p.ReviewedAt,
		&p.ReviewedBy,
		&p.RejectionReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create creates a new profile for a user
func (r *ProfileRepository) Create(profile *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, full_name, birthday, judge_level, judge_start, rider_district,
			approval_status, role, requested_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	now := time.Now()
	_, err := r.db.Exec(
		query,
		profile.UserID,
		profile.FullName,
		profile.Birthday,
		profile.JudgeLevel,
		profile.JudgeStart,
		profile.RiderDistrict,
		profile.ApprovalStatus,
		profile.Role,
		now,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	profile.RequestedAt = now
	profile.CreatedAt = now
	profile.UpdatedAt = now
	return nil
}

// GetByUserID retrieves a profile by user ID
func (r *ProfileRepository) GetByUserID(userID uint) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	profile, err := scanProfile(r.db.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// FindJudgeByName resolves a judge by display name, case-insensitively.
// The match must be exact apart from case; when several profiles share the
// name the one with the lowest user ID wins.
func (r *ProfileRepository) FindJudgeByName(name string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
		WHERE LOWER(full_name) = LOWER($1)
		ORDER BY user_id
		LIMIT 1`

	profile, err := scanProfile(r.db.QueryRow(query, name))
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find judge: %w", err)
	}

	return profile, nil
}

// Update updates the user-editable profile fields
func (r *ProfileRepository) Update(profile *models.Profile) error {
	query := `
		UPDATE profiles
		SET full_name = $1, birthday = $2, judge_level = $3, judge_start = $4,
			rider_district = $5, updated_at = $6
		WHERE user_id = $7
	`

	result, err := r.db.Exec(
		query,
		profile.FullName,
		profile.Birthday,
		profile.JudgeLevel,
		profile.JudgeStart,
		profile.RiderDistrict,
		time.Now(),
		profile.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// ListPending returns all profiles awaiting approval, oldest request first
func (r *ProfileRepository) ListPending() ([]models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
		WHERE approval_status = $1
		ORDER BY requested_at`

	rows, err := r.db.Query(query, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}

	return profiles, rows.Err()
}

// SetApproval records an admin decision on a pending profile. Approving
// clears any earlier rejection reason.
func (r *ProfileRepository) SetApproval(userID uint, status string, reviewedBy uint, rejectionReason *string) error {
	query := `
		UPDATE profiles
		SET approval_status = $1, reviewed_at = $2, reviewed_by = $3, rejection_reason = $4, updated_at = $2
		WHERE user_id = $5
	`

	result, err := r.db.Exec(query, status, time.Now(), reviewedBy, rejectionReason, userID)
	if err != nil {
		return fmt.Errorf("failed to set approval status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}
