package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dommerportal/internal/models"
)

var ErrReportNotFound = errors.New("report not found")

// ReportRepository handles judge meeting report database operations
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, user_id, show_date, location, judge_1, judge_2, judge_3,
	judge_1_id, judge_2_id, judge_3_id, status, submitted_at, payload, created_at, updated_at`

func scanReport(row interface{ Scan(...any) error }) (*models.JudgeMeetingReport, error) {
	report := &models.JudgeMeetingReport{}
	var payload []byte
	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.ShowDate,
		&report.Location,
		&report.Judge1,
		&report.Judge2,
		&report.Judge3,
		&report.Judge1ID,
		&report.Judge2ID,
		&report.Judge3ID,
		&report.Status,
		&report.SubmittedAt,
		&payload,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &report.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode report payload: %w", err)
		}
	}

	return report, nil
}

// Create inserts a new report. A missing ID is generated here.
func (r *ReportRepository) Create(report *models.JudgeMeetingReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	payload, err := json.Marshal(report.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode report payload: %w", err)
	}

	query := `
		INSERT INTO judge_meeting_reports (id, user_id, show_date, location,
			judge_1, judge_2, judge_3, judge_1_id, judge_2_id, judge_3_id,
			status, submitted_at, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	now := time.Now()
	_, err = r.db.Exec(
		query,
		report.ID,
		report.UserID,
		report.ShowDate,
		report.Location,
		report.Judge1,
		report.Judge2,
		report.Judge3,
		report.Judge1ID,
		report.Judge2ID,
		report.Judge3ID,
		report.Status,
		report.SubmittedAt,
		payload,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	report.CreatedAt = now
	report.UpdatedAt = now
	return nil
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(id string) (*models.JudgeMeetingReport, error) {
	query := `SELECT ` + reportColumns + ` FROM judge_meeting_reports WHERE id = $1`

	report, err := scanReport(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return report, nil
}

// Update persists report fields and payload. Writes always carry an
// explicit status; the legacy NULL form is never written back.
func (r *ReportRepository) Update(report *models.JudgeMeetingReport) error {
	payload, err := json.Marshal(report.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode report payload: %w", err)
	}

	query := `
		UPDATE judge_meeting_reports
		SET show_date = $1, location = $2,
			judge_1 = $3, judge_2 = $4, judge_3 = $5,
			judge_1_id = $6, judge_2_id = $7, judge_3_id = $8,
			status = $9, submitted_at = $10, payload = $11, updated_at = $12
		WHERE id = $13
	`

	result, err := r.db.Exec(
		query,
		report.ShowDate,
		report.Location,
		report.Judge1,
		report.Judge2,
		report.Judge3,
		report.Judge1ID,
		report.Judge2ID,
		report.Judge3ID,
		report.Status,
		report.SubmittedAt,
		payload,
		time.Now(),
		report.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrReportNotFound
	}

	return nil
}

// ListByUser returns all reports owned by a user, newest first
func (r *ReportRepository) ListByUser(userID uint) ([]models.JudgeMeetingReport, error) {
	query := `SELECT ` + reportColumns + ` FROM judge_meeting_reports
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.JudgeMeetingReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}

	return reports, rows.Err()
}

// Delete removes a report
func (r *ReportRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM judge_meeting_reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrReportNotFound
	}

	return nil
}
