package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dommerportal/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository handles notification database operations
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification
func (r *NotificationRepository) Create(n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	query := `
		INSERT INTO notifications (id, user_id, observation_id, type, title, message, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
	`

	now := time.Now()
	_, err := r.db.Exec(query, n.ID, n.UserID, n.ObservationID, n.Type, n.Title, n.Message, n.Link, now)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	n.CreatedAt = now
	return nil
}

// ListByUser returns a user's notifications, newest first
func (r *NotificationRepository) ListByUser(userID uint) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, observation_id, type, title, message, link, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.ObservationID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.Link,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkRead marks a single notification read, scoped to its owner
func (r *NotificationRepository) MarkRead(id string, userID uint) error {
	result, err := r.db.Exec(
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkReadByObservation marks every notification attached to an
// observation as read. Used when the host decides on the request.
func (r *NotificationRepository) MarkReadByObservation(observationID string) error {
	_, err := r.db.Exec(
		`UPDATE notifications SET is_read = TRUE WHERE observation_id = $1`,
		observationID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark observation notifications read: %w", err)
	}
	return nil
}
