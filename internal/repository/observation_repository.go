package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dommerportal/internal/models"
)

var ErrObservationNotFound = errors.New("observation not found")

// ObservationRepository handles observation database operations
type ObservationRepository struct {
	db *sql.DB
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *sql.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

const observationColumns = `id, year_id, observer_id, observation_date, location, class_level,
	number_of_horses, result_list_url, host_user_id, host_name, status, rejection_comment,
	created_at, updated_at`

func scanObservation(row interface{ Scan(...any) error }) (*models.Observation, error) {
	obs := &models.Observation{}
	err := row.Scan(
		&obs.ID,
		&obs.YearID,
		&obs.ObserverID,
		&obs.ObservationDate,
		&obs.Location,
		&obs.ClassLevel,
		&obs.NumberOfHorses,
		&obs.ResultListURL,
		&obs.HostUserID,
		&obs.HostName,
		&obs.Status,
		&obs.RejectionComment,
		&obs.CreatedAt,
		&obs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// Create inserts a new observation in pending state
func (r *ObservationRepository) Create(obs *models.Observation) error {
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}

	query := `
		INSERT INTO observations (id, year_id, observer_id, observation_date, location,
			class_level, number_of_horses, result_list_url, host_user_id, host_name,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	now := time.Now()
	_, err := r.db.Exec(
		query,
		obs.ID,
		obs.YearID,
		obs.ObserverID,
		obs.ObservationDate,
		obs.Location,
		obs.ClassLevel,
		obs.NumberOfHorses,
		obs.ResultListURL,
		obs.HostUserID,
		obs.HostName,
		obs.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}

	obs.CreatedAt = now
	obs.UpdatedAt = now
	return nil
}

// GetByID retrieves an observation by ID
func (r *ObservationRepository) GetByID(id string) (*models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations WHERE id = $1`

	obs, err := scanObservation(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrObservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}

	return obs, nil
}

// Update persists observation content and state. Resubmitting a rejected
// observation goes through here with status reset to pending and the
// rejection comment cleared.
func (r *ObservationRepository) Update(obs *models.Observation) error {
	query := `
		UPDATE observations
		SET observation_date = $1, location = $2, class_level = $3, number_of_horses = $4,
			result_list_url = $5, host_user_id = $6, host_name = $7, status = $8,
			rejection_comment = $9, updated_at = $10
		WHERE id = $11
	`

	result, err := r.db.Exec(
		query,
		obs.ObservationDate,
		obs.Location,
		obs.ClassLevel,
		obs.NumberOfHorses,
		obs.ResultListURL,
		obs.HostUserID,
		obs.HostName,
		obs.Status,
		obs.RejectionComment,
		time.Now(),
		obs.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update observation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrObservationNotFound
	}

	return nil
}

// Delete removes an observation
func (r *ObservationRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM observations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete observation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrObservationNotFound
	}

	return nil
}

// ListByYear returns all observations in a year, newest date first
func (r *ObservationRepository) ListByYear(yearID string) ([]models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations
		WHERE year_id = $1
		ORDER BY observation_date DESC`

	return r.queryList(query, yearID)
}

// ListPendingForHost returns observations awaiting a host's decision
func (r *ObservationRepository) ListPendingForHost(hostUserID uint) ([]models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations
		WHERE host_user_id = $1 AND status = $2
		ORDER BY created_at`

	return r.queryList(query, hostUserID, models.StatusPending)
}

func (r *ObservationRepository) queryList(query string, args ...any) ([]models.Observation, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, *obs)
	}

	return observations, rows.Err()
}
