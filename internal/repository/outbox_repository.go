package repository

import (
	"database/sql"
	"fmt"
	"time"

	"dommerportal/internal/models"
)

// OutboxRepository handles the mail outbox used to retry failed
// report dispatches.
type OutboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue records a failed dispatch for later retry
func (r *OutboxRepository) Enqueue(reportID, recipient string, lastError string) error {
	query := `
		INSERT INTO mail_outbox (report_id, recipient, attempts, last_error, created_at)
		VALUES ($1, $2, 1, $3, $4)
	`

	_, err := r.db.Exec(query, reportID, recipient, lastError, time.Now())
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	return nil
}

// ListPending returns unsent entries below the attempt cap, oldest first
func (r *OutboxRepository) ListPending(maxAttempts int) ([]models.OutboxEntry, error) {
	query := `
		SELECT id, report_id, recipient, attempts, last_error, created_at, sent_at
		FROM mail_outbox
		WHERE sent_at IS NULL AND attempts < $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(query, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []models.OutboxEntry
	for rows.Next() {
		var e models.OutboxEntry
		if err := rows.Scan(
			&e.ID,
			&e.ReportID,
			&e.Recipient,
			&e.Attempts,
			&e.LastError,
			&e.CreatedAt,
			&e.SentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// MarkSent stamps a successful retry
func (r *OutboxRepository) MarkSent(id uint) error {
	_, err := r.db.Exec(`UPDATE mail_outbox SET sent_at = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry sent: %w", err)
	}
	return nil
}

// MarkFailed increments the attempt counter and records the error
func (r *OutboxRepository) MarkFailed(id uint, lastError string) error {
	_, err := r.db.Exec(
		`UPDATE mail_outbox SET attempts = attempts + 1, last_error = $1 WHERE id = $2`,
		lastError, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry failed: %w", err)
	}
	return nil
}
