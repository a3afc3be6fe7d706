package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dommerportal/internal/email"
	"dommerportal/internal/models"
	"dommerportal/internal/repository"
)

var (
	// ErrForbidden is returned when a user touches a resource they do not own
	ErrForbidden = errors.New("access denied")
	// ErrReportImmutable is returned on writes to a submitted report
	ErrReportImmutable = errors.New("report has been submitted and cannot be changed")
)

// ReportStore is the persistence surface the report service needs
type ReportStore interface {
	Create(report *models.JudgeMeetingReport) error
	GetByID(id string) (*models.JudgeMeetingReport, error)
	Update(report *models.JudgeMeetingReport) error
	ListByUser(userID uint) ([]models.JudgeMeetingReport, error)
	Delete(id string) error
}

// JudgeDirectory resolves judge names to member profiles
type JudgeDirectory interface {
	FindJudgeByName(name string) (*models.Profile, error)
}

// ObjectStore holds protocol images
type ObjectStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// Dispatcher sends a submitted report to the association
type Dispatcher interface {
	Dispatch(ctx context.Context, reportID string) error
}

// Outbox queues failed dispatches for retry
type Outbox interface {
	Enqueue(reportID, recipient, lastError string) error
}

// ReportInput carries the editable fields of a judge meeting report
type ReportInput struct {
	ShowDate time.Time
	Location string
	Judges   []string
	Payload  models.ReportPayload
}

// ReportService implements the judge meeting report lifecycle
type ReportService struct {
	store      ReportStore
	judges     JudgeDirectory
	objects    ObjectStore
	dispatcher Dispatcher
	outbox     Outbox
	recipient  string
}

// NewReportService creates a new report service
func NewReportService(store ReportStore, judges JudgeDirectory, objects ObjectStore, dispatcher Dispatcher, outbox Outbox, recipient string) *ReportService {
	return &ReportService{
		store:      store,
		judges:     judges,
		objects:    objects,
		dispatcher: dispatcher,
		outbox:     outbox,
		recipient:  recipient,
	}
}

// CreateDraft creates a new draft report for the user
func (s *ReportService) CreateDraft(userID uint, input ReportInput) (*models.JudgeMeetingReport, error) {
	status := models.ReportStatusDraft
	report := &models.JudgeMeetingReport{
		ID:       uuid.NewString(),
		UserID:   userID,
		ShowDate: input.ShowDate,
		Location: input.Location,
		Status:   &status,
		Payload:  input.Payload,
	}
	s.applyJudges(report, input.Judges)
	report.Payload.Deviation = models.ComputeDeviation(report.Payload.HighestPercent, report.Payload.LowestPercent)

	if err := s.store.Create(report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return report, nil
}

// SaveDraft updates a draft report. Submitted reports reject all writes.
func (s *ReportService) SaveDraft(userID uint, id string, input ReportInput) (*models.JudgeMeetingReport, error) {
	report, err := s.ownedReport(userID, id)
	if err != nil {
		return nil, err
	}
	if report.IsSubmitted() {
		return nil, ErrReportImmutable
	}

	report.ShowDate = input.ShowDate
	report.Location = input.Location
	report.Payload = input.Payload
	s.applyJudges(report, input.Judges)
	report.Payload.Deviation = models.ComputeDeviation(report.Payload.HighestPercent, report.Payload.LowestPercent)

	// Saving always writes an explicit draft status, migrating legacy rows
	status := models.ReportStatusDraft
	report.Status = &status

	if err := s.store.Update(report); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}
	return report, nil
}

// Submit finalizes the report and dispatches it to the association. A
// dispatch failure does not roll back the submit; the report goes to the
// outbox and the scheduler retries delivery. The returned flag tells the
// caller whether delivery was deferred that way.
func (s *ReportService) Submit(ctx context.Context, userID uint, id string) (*models.JudgeMeetingReport, bool, error) {
	report, err := s.ownedReport(userID, id)
	if err != nil {
		return nil, false, err
	}
	if report.IsSubmitted() {
		return nil, false, ErrReportImmutable
	}

	now := time.Now()
	status := models.ReportStatusSubmitted
	report.Status = &status
	report.SubmittedAt = &now
	report.Payload.Draft = nil

	if err := s.store.Update(report); err != nil {
		return nil, false, fmt.Errorf("failed to submit report: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, report.ID); err != nil {
		slog.Warn("Report dispatch failed, queueing for retry",
			"report_id", report.ID,
			"error", err,
		)
		if queueErr := s.outbox.Enqueue(report.ID, s.recipient, err.Error()); queueErr != nil {
			slog.Error("Failed to queue report for retry",
				"report_id", report.ID,
				"error", queueErr,
			)
		}
		return report, true, nil
	}

	return report, false, nil
}

// Get fetches a report owned by the user
func (s *ReportService) Get(userID uint, id string) (*models.JudgeMeetingReport, error) {
	return s.ownedReport(userID, id)
}

// List returns the user's reports, newest first
func (s *ReportService) List(userID uint) ([]models.JudgeMeetingReport, error) {
	return s.store.ListByUser(userID)
}

// Delete removes a draft report. Submitted reports cannot be deleted.
func (s *ReportService) Delete(userID uint, id string) error {
	report, err := s.ownedReport(userID, id)
	if err != nil {
		return err
	}
	if report.IsSubmitted() {
		return ErrReportImmutable
	}
	return s.store.Delete(id)
}

// UploadImage stores a protocol image and returns its object key
func (s *ReportService) UploadImage(ctx context.Context, userID uint, filename string, data []byte) (string, error) {
	key := fmt.Sprintf("%d/%d-%s", userID, time.Now().UnixMilli(), filename)
	contentType := email.ContentTypeForFilename(filename)
	if err := s.objects.Upload(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return key, nil
}

func (s *ReportService) ownedReport(userID uint, id string) (*models.JudgeMeetingReport, error) {
	report, err := s.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if report.UserID != userID {
		return nil, ErrForbidden
	}
	return report, nil
}

// applyJudges fills the judge name columns and resolves each name to a
// member profile. Resolution is an exact case-insensitive match; a name
// without a matching member keeps a nil ID.
func (s *ReportService) applyJudges(report *models.JudgeMeetingReport, judges []string) {
	names := [3]*string{}
	ids := [3]*uint{}
	for i := 0; i < len(judges) && i < 3; i++ {
		name := judges[i]
		if name == "" {
			continue
		}
		names[i] = &name
		profile, err := s.judges.FindJudgeByName(name)
		if err != nil {
			if !errors.Is(err, repository.ErrProfileNotFound) {
				slog.Warn("Judge lookup failed", "name", name, "error", err)
			}
			continue
		}
		id := profile.UserID
		ids[i] = &id
	}
	report.Judge1, report.Judge2, report.Judge3 = names[0], names[1], names[2]
	report.Judge1ID, report.Judge2ID, report.Judge3ID = ids[0], ids[1], ids[2]
}
