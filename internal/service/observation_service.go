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
	// ErrCommentRequired is returned when a rejection carries no comment
	ErrCommentRequired = errors.New("rejection requires a comment")
	// ErrObservationDecided is returned when an approval decision is
	// attempted on an observation that is not pending
	ErrObservationDecided = errors.New("observation has already been decided")
	// ErrObservationApproved is returned on edits to an approved observation
	ErrObservationApproved = errors.New("approved observations cannot be changed")
	// ErrYearClosed is returned on writes into a year that is no longer open
	ErrYearClosed = errors.New("observation year is closed")
	// ErrYearStatusUnknown is returned for a status outside the lifecycle
	ErrYearStatusUnknown = errors.New("unknown observation year status")
)

// ObservationStore is the persistence surface for observations
type ObservationStore interface {
	Create(obs *models.Observation) error
	GetByID(id string) (*models.Observation, error)
	Update(obs *models.Observation) error
	Delete(id string) error
	ListByYear(yearID string) ([]models.Observation, error)
	ListPendingForHost(hostUserID uint) ([]models.Observation, error)
}

// YearStore manages per-observer observation years
type YearStore interface {
	GetByID(id string) (*models.ObservationYear, error)
	GetOrCreate(observerID uint, calendarYear int) (*models.ObservationYear, error)
	ListByObserver(observerID uint) ([]models.ObservationYear, error)
	UpdateStatus(id, status string) error
}

// NotificationStore writes and resolves in-app notifications
type NotificationStore interface {
	Create(n *models.Notification) error
	MarkReadByObservation(observationID string) error
}

// ProfileReader fetches member profiles by user ID
type ProfileReader interface {
	GetByUserID(userID uint) (*models.Profile, error)
}

// ObservationInput carries the editable fields of an observation
type ObservationInput struct {
	ObservationDate time.Time
	Location        string
	ClassLevel      *string
	NumberOfHorses  *int
	ResultListURL   *string
	HostName        string
}

// ObservationService implements the bisitting approval workflow
type ObservationService struct {
	observations  ObservationStore
	years         YearStore
	notifications NotificationStore
	hosts         JudgeDirectory
	profiles      ProfileReader
}

// NewObservationService creates a new observation service
func NewObservationService(observations ObservationStore, years YearStore, notifications NotificationStore, hosts JudgeDirectory, profiles ProfileReader) *ObservationService {
	return &ObservationService{
		observations:  observations,
		years:         years,
		notifications: notifications,
		hosts:         hosts,
		profiles:      profiles,
	}
}

// Create registers a new observation in the observer's year for the
// observation date. The year row is created on first use. When the host
// name matches a member, that member gets an approval request.
func (s *ObservationService) Create(observerID uint, input ObservationInput) (*models.Observation, error) {
	year, err := s.years.GetOrCreate(observerID, input.ObservationDate.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observation year: %w", err)
	}
	if year.Status != models.YearStatusOpen {
		return nil, ErrYearClosed
	}

	obs := &models.Observation{
		YearID:          year.ID,
		ObserverID:      observerID,
		ObservationDate: input.ObservationDate,
		Location:        input.Location,
		ClassLevel:      input.ClassLevel,
		NumberOfHorses:  input.NumberOfHorses,
		ResultListURL:   input.ResultListURL,
		HostName:        input.HostName,
		HostUserID:      s.resolveHost(input.HostName),
		Status:          models.StatusPending,
	}

	if err := s.observations.Create(obs); err != nil {
		return nil, fmt.Errorf("failed to create observation: %w", err)
	}

	s.notifyHost(obs)
	return obs, nil
}

// Update edits an observation. Pending entries are edited in place. A
// rejected entry goes back to pending with the rejection comment cleared,
// and the host is asked again. Approved entries are locked.
func (s *ObservationService) Update(observerID uint, id string, input ObservationInput) (*models.Observation, error) {
	obs, err := s.ownedObservation(observerID, id)
	if err != nil {
		return nil, err
	}
	if obs.Status == models.StatusApproved {
		return nil, ErrObservationApproved
	}
	if err := s.requireOpenYear(obs.YearID); err != nil {
		return nil, err
	}

	resubmit := obs.Status == models.StatusRejected

	obs.ObservationDate = input.ObservationDate
	obs.Location = input.Location
	obs.ClassLevel = input.ClassLevel
	obs.NumberOfHorses = input.NumberOfHorses
	obs.ResultListURL = input.ResultListURL
	obs.HostName = input.HostName
	obs.HostUserID = s.resolveHost(input.HostName)
	obs.Status = models.StatusPending
	obs.RejectionComment = nil

	if err := s.observations.Update(obs); err != nil {
		return nil, fmt.Errorf("failed to update observation: %w", err)
	}

	if resubmit {
		s.notifyHost(obs)
	}
	return obs, nil
}

// Delete removes an observation that has not been approved
func (s *ObservationService) Delete(observerID uint, id string) error {
	obs, err := s.ownedObservation(observerID, id)
	if err != nil {
		return err
	}
	if obs.Status == models.StatusApproved {
		return ErrObservationApproved
	}
	if err := s.requireOpenYear(obs.YearID); err != nil {
		return err
	}
	return s.observations.Delete(id)
}

// ListYears returns the observer's observation years, newest first
func (s *ObservationService) ListYears(observerID uint) ([]models.ObservationYear, error) {
	return s.years.ListByObserver(observerID)
}

// ListByYear returns the observations in one of the observer's years
func (s *ObservationService) ListByYear(observerID uint, yearID string) ([]models.Observation, error) {
	year, err := s.years.GetByID(yearID)
	if err != nil {
		return nil, err
	}
	if year.ObserverID != observerID {
		return nil, ErrForbidden
	}
	return s.observations.ListByYear(yearID)
}

// SetYearStatus moves an observation year through its lifecycle. Any
// status other than open locks the year's entries against member edits.
func (s *ObservationService) SetYearStatus(yearID, status string) (*models.ObservationYear, error) {
	switch status {
	case models.YearStatusOpen, models.YearStatusClosed, models.YearStatusSubmitted:
	default:
		return nil, ErrYearStatusUnknown
	}
	if err := s.years.UpdateStatus(yearID, status); err != nil {
		return nil, err
	}
	return s.years.GetByID(yearID)
}

// ListPendingForHost returns the observations waiting for the host's decision
func (s *ObservationService) ListPendingForHost(hostUserID uint) ([]models.Observation, error) {
	return s.observations.ListPendingForHost(hostUserID)
}

// Approve confirms an observation as its host
func (s *ObservationService) Approve(hostUserID uint, id string) (*models.Observation, error) {
	obs, err := s.hostedObservation(hostUserID, id)
	if err != nil {
		return nil, err
	}

	obs.Status = models.StatusApproved
	obs.RejectionComment = nil
	if err := s.observations.Update(obs); err != nil {
		return nil, fmt.Errorf("failed to approve observation: %w", err)
	}

	s.resolveRequestNotifications(obs.ID)
	s.notifyObserver(obs, models.NotificationObservationApproved,
		"Bisitting godkjent",
		fmt.Sprintf("%s har godkjent din bisitting %s i %s.",
			obs.HostName, obs.ObservationDate.Format("02.01.2006"), obs.Location))
	return obs, nil
}

// Reject turns an observation down as its host. The comment is mandatory
// so the observer knows what to fix.
func (s *ObservationService) Reject(hostUserID uint, id, comment string) (*models.Observation, error) {
	if comment == "" {
		return nil, ErrCommentRequired
	}
	obs, err := s.hostedObservation(hostUserID, id)
	if err != nil {
		return nil, err
	}

	obs.Status = models.StatusRejected
	obs.RejectionComment = &comment
	if err := s.observations.Update(obs); err != nil {
		return nil, fmt.Errorf("failed to reject observation: %w", err)
	}

	s.resolveRequestNotifications(obs.ID)
	s.notifyObserver(obs, models.NotificationObservationRejected,
		"Bisitting avvist",
		fmt.Sprintf("%s har avvist din bisitting %s i %s: %s",
			obs.HostName, obs.ObservationDate.Format("02.01.2006"), obs.Location, comment))
	return obs, nil
}

func (s *ObservationService) ownedObservation(observerID uint, id string) (*models.Observation, error) {
	obs, err := s.observations.GetByID(id)
	if err != nil {
		return nil, err
	}
	if obs.ObserverID != observerID {
		return nil, ErrForbidden
	}
	return obs, nil
}

func (s *ObservationService) requireOpenYear(yearID string) error {
	year, err := s.years.GetByID(yearID)
	if err != nil {
		return err
	}
	if year.Status != models.YearStatusOpen {
		return ErrYearClosed
	}
	return nil
}

func (s *ObservationService) hostedObservation(hostUserID uint, id string) (*models.Observation, error) {
	obs, err := s.observations.GetByID(id)
	if err != nil {
		return nil, err
	}
	if obs.HostUserID == nil || *obs.HostUserID != hostUserID {
		return nil, ErrForbidden
	}
	if obs.Status != models.StatusPending {
		return nil, ErrObservationDecided
	}
	return obs, nil
}

// resolveHost matches the host name against member profiles. No match
// means the observation stays without an in-app approver.
func (s *ObservationService) resolveHost(hostName string) *uint {
	if hostName == "" {
		return nil
	}
	profile, err := s.hosts.FindJudgeByName(hostName)
	if err != nil {
		if !errors.Is(err, repository.ErrProfileNotFound) {
			slog.Warn("Host lookup failed", "name", hostName, "error", err)
		}
		return nil
	}
	id := profile.UserID
	return &id
}

// notifyHost asks the resolved host to approve the observation. An
// unresolved host gets nothing; approval then happens outside the system.
func (s *ObservationService) notifyHost(obs *models.Observation) {
	if obs.HostUserID == nil {
		return
	}

	observerName := fmt.Sprintf("Medlem #%d", obs.ObserverID)
	if profile, err := s.profiles.GetByUserID(obs.ObserverID); err == nil {
		observerName = profile.FullName
	}

	link := "/bisitting/godkjenning"
	n := &models.Notification{
		UserID:        *obs.HostUserID,
		ObservationID: &obs.ID,
		Type:          models.NotificationObservationRequest,
		Title:         "Bisitting til godkjenning",
		Message: fmt.Sprintf("%s ber deg bekrefte en bisitting %s i %s.",
			observerName, obs.ObservationDate.Format("02.01.2006"), obs.Location),
		Link: &link,
	}
	if err := s.notifications.Create(n); err != nil {
		slog.Error("Failed to create host notification",
			"observation_id", obs.ID,
			"host_user_id", *obs.HostUserID,
			"error", err,
		)
	}
}

func (s *ObservationService) notifyObserver(obs *models.Observation, notificationType, title, message string) {
	link := "/bisitting"
	n := &models.Notification{
		UserID:        obs.ObserverID,
		ObservationID: &obs.ID,
		Type:          notificationType,
		Title:         title,
		Message:       message,
		Link:          &link,
	}
	if err := s.notifications.Create(n); err != nil {
		slog.Error("Failed to create observer notification",
			"observation_id", obs.ID,
			"observer_id", obs.ObserverID,
			"error", err,
		)
	}
}

// resolveRequestNotifications marks the host's approval request
// notifications read once a decision lands
func (s *ObservationService) resolveRequestNotifications(observationID string) {
	if err := s.notifications.MarkReadByObservation(observationID); err != nil {
		slog.Warn("Failed to resolve observation notifications",
			"observation_id", observationID,
			"error", err,
		)
	}
}
