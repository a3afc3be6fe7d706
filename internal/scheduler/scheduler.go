package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"dommerportal/internal/config"
	"dommerportal/internal/models"
)

// OutboxQueue is the retry queue surface the scheduler drains
type OutboxQueue interface {
	ListPending(maxAttempts int) ([]models.OutboxEntry, error)
	MarkSent(id uint) error
	MarkFailed(id uint, lastError string) error
}

// ReportDispatcher re-sends queued reports to the recipient recorded
// when they were queued
type ReportDispatcher interface {
	DispatchTo(ctx context.Context, reportID, recipient string) error
}

// SessionCleaner removes expired login sessions
type SessionCleaner interface {
	DeleteExpired() (int64, error)
}

// Scheduler handles periodic tasks
type Scheduler struct {
	outbox     OutboxQueue
	dispatcher ReportDispatcher
	sessions   SessionCleaner
	config     *config.SchedulerConfig
	stopChan   chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(outbox OutboxQueue, dispatcher ReportDispatcher, sessions SessionCleaner, cfg *config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		outbox:     outbox,
		dispatcher: dispatcher,
		sessions:   sessions,
		config:     cfg,
		stopChan:   make(chan bool),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler",
		"outbox_retry_enabled", s.config.EnableOutboxRetry,
		"session_cleanup_enabled", s.config.EnableSessionCleanup)

	if s.config.EnableOutboxRetry {
		if err := s.startCronTask(s.config.OutboxRetryCron, "outbox_retry", s.retryOutbox); err != nil {
			slog.Error("Failed to start outbox retry", "error", err)
		}
	}

	if s.config.EnableSessionCleanup {
		if err := s.startCronTask(s.config.SessionCleanupCron, "session_cleanup", s.cleanupSessions); err != nil {
			slog.Error("Failed to start session cleanup", "error", err)
		}
	}

	slog.Info("Scheduler started")
}

// startCronTask parses a cron expression and starts the task
// Supports simple cron format: "minute hour day month weekday"
// Examples: "0 4 * * *" = Daily 4 AM, "*/10 * * * *" = Every 10 minutes
func (s *Scheduler) startCronTask(cronExpr, taskName string, task func()) error {
	parts := strings.Fields(cronExpr)
	if len(parts) != 5 {
		return fmt.Errorf("invalid cron expression: %s (expected 5 fields)", cronExpr)
	}

	// Parse minute field (supports */n for intervals)
	if strings.HasPrefix(parts[0], "*/") {
		interval, err := strconv.Atoi(parts[0][2:])
		if err != nil || interval < 1 || interval > 59 {
			return fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		go s.scheduleIntervalTask(time.Duration(interval)*time.Minute, taskName, task)
		return nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	if parts[4] == "*" {
		go s.scheduleDailyTask(hour, minute, taskName, task)
	} else {
		weekday, err := strconv.Atoi(parts[4])
		if err != nil || weekday < 0 || weekday > 6 {
			return fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
		}
		go s.scheduleWeeklyTask(time.Weekday(weekday), hour, minute, taskName, task)
	}

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	close(s.stopChan)
}

// scheduleIntervalTask runs a task at regular intervals
func (s *Scheduler) scheduleIntervalTask(interval time.Duration, taskName string, task func()) {
	slog.Info("Starting interval task", "task", taskName, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	slog.Info("Running interval task", "task", taskName)
	task()

	for {
		select {
		case <-ticker.C:
			slog.Info("Running interval task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// scheduleDailyTask runs a task daily at a specific time
func (s *Scheduler) scheduleDailyTask(hour, minute int, taskName string, task func()) {
	for {
		now := time.Now()
		next := s.nextDailyRun(now, hour, minute)
		duration := next.Sub(now)

		slog.Info("Next daily task scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

		select {
		case <-time.After(duration):
			slog.Info("Running daily task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// scheduleWeeklyTask runs a task weekly on a specific weekday and time
func (s *Scheduler) scheduleWeeklyTask(weekday time.Weekday, hour, minute int, taskName string, task func()) {
	for {
		now := time.Now()
		next := s.nextWeekday(now, weekday, hour, minute)
		duration := next.Sub(now)

		slog.Info("Next weekly task scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

		select {
		case <-time.After(duration):
			slog.Info("Running weekly task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// nextDailyRun calculates the next daily run time
func (s *Scheduler) nextDailyRun(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	// If the time has already passed today, schedule for tomorrow
	if next.Before(from) || next.Equal(from) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// nextWeekday calculates the next occurrence of a specific weekday and time
func (s *Scheduler) nextWeekday(from time.Time, weekday time.Weekday, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	daysUntil := int(weekday - from.Weekday())
	if daysUntil < 0 {
		daysUntil += 7
	}

	next = next.AddDate(0, 0, daysUntil)

	if next.Before(from) || next.Equal(from) {
		next = next.AddDate(0, 0, 7)
	}

	return next
}

// retryOutbox re-sends queued report dispatches. Entries give up after
// OutboxMaxAttempts and stay visible in the table for manual follow-up.
func (s *Scheduler) retryOutbox() {
	entries, err := s.outbox.ListPending(s.config.OutboxMaxAttempts)
	if err != nil {
		slog.Error("Failed to list pending outbox entries", "error", err)
		return
	}

	if len(entries) == 0 {
		return
	}

	slog.Info("Retrying queued report dispatches", "count", len(entries))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sent := 0
	for _, entry := range entries {
		if err := s.dispatcher.DispatchTo(ctx, entry.ReportID, entry.Recipient); err != nil {
			slog.Warn("Outbox retry failed",
				"outbox_id", entry.ID,
				"report_id", entry.ReportID,
				"attempts", entry.Attempts,
				"error", err,
			)
			if markErr := s.outbox.MarkFailed(entry.ID, err.Error()); markErr != nil {
				slog.Error("Failed to record outbox failure", "outbox_id", entry.ID, "error", markErr)
			}
			continue
		}

		if err := s.outbox.MarkSent(entry.ID); err != nil {
			slog.Error("Failed to mark outbox entry sent", "outbox_id", entry.ID, "error", err)
			continue
		}
		sent++
	}

	slog.Info("Outbox retry completed", "sent", sent, "total", len(entries))
}

// cleanupSessions removes expired login sessions
func (s *Scheduler) cleanupSessions() {
	removed, err := s.sessions.DeleteExpired()
	if err != nil {
		slog.Error("Failed to clean up sessions", "error", err)
		return
	}

	if removed > 0 {
		slog.Info("Expired sessions removed", "count", removed)
	}
}
