package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dommerportal/internal/models"
)

var ErrObservationYearNotFound = errors.New("observation year not found")

// ObservationYearRepository handles observation year database operations
type ObservationYearRepository struct {
	db *sql.DB
}

// NewObservationYearRepository creates a new observation year repository
func NewObservationYearRepository(db *sql.DB) *ObservationYearRepository {
	return &ObservationYearRepository{db: db}
}

func scanObservationYear(row interface{ Scan(...any) error }) (*models.ObservationYear, error) {
	year := &models.ObservationYear{}
	err := row.Scan(
		&year.ID,
		&year.ObserverID,
		&year.Year,
		&year.Status,
		&year.CreatedAt,
		&year.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return year, nil
}

// GetByID retrieves an observation year by ID
func (r *ObservationYearRepository) GetByID(id string) (*models.ObservationYear, error) {
	query := `
		SELECT id, observer_id, year, status, created_at, updated_at
		FROM observation_years
		WHERE id = $1
	`

	year, err := scanObservationYear(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrObservationYearNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation year: %w", err)
	}

	return year, nil
}

// GetOrCreate returns the observer's row for the given calendar year,
// creating an open one on first access. The unique constraint on
// (observer_id, year) makes concurrent first access safe.
func (r *ObservationYearRepository) GetOrCreate(observerID uint, calendarYear int) (*models.ObservationYear, error) {
	query := `
		INSERT INTO observation_years (id, observer_id, year, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (observer_id, year) DO UPDATE SET updated_at = observation_years.updated_at
		RETURNING id, observer_id, year, status, created_at, updated_at
	`

	year, err := scanObservationYear(r.db.QueryRow(
		query, uuid.NewString(), observerID, calendarYear, models.YearStatusOpen, time.Now(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create observation year: %w", err)
	}

	return year, nil
}

// ListByObserver returns all years for an observer, newest first
func (r *ObservationYearRepository) ListByObserver(observerID uint) ([]models.ObservationYear, error) {
	query := `
		SELECT id, observer_id, year, status, created_at, updated_at
		FROM observation_years
		WHERE observer_id = $1
		ORDER BY year DESC
	`

	rows, err := r.db.Query(query, observerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list observation years: %w", err)
	}
	defer rows.Close()

	var years []models.ObservationYear
	for rows.Next() {
		year, err := scanObservationYear(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation year: %w", err)
		}
		years = append(years, *year)
	}

	return years, rows.Err()
}

// UpdateStatus changes the lifecycle status of a year
func (r *ObservationYearRepository) UpdateStatus(id, status string) error {
	result, err := r.db.Exec(
		`UPDATE observation_years SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update observation year status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrObservationYearNotFound
	}

	return nil
}
