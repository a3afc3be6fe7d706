package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"dommerportal/internal/models"
	"dommerportal/internal/repository"
)

type fakeObservationStore struct {
	observations map[string]*models.Observation
	nextID       int
}

func newFakeObservationStore() *fakeObservationStore {
	return &fakeObservationStore{observations: make(map[string]*models.Observation)}
}

func (f *fakeObservationStore) Create(obs *models.Observation) error {
	if obs.ID == "" {
		f.nextID++
		obs.ID = fmt.Sprintf("obs-%d", f.nextID)
	}
	copied := *obs
	f.observations[obs.ID] = &copied
	return nil
}

func (f *fakeObservationStore) GetByID(id string) (*models.Observation, error) {
	obs, ok := f.observations[id]
	if !ok {
		return nil, repository.ErrObservationNotFound
	}
	copied := *obs
	return &copied, nil
}

func (f *fakeObservationStore) Update(obs *models.Observation) error {
	if _, ok := f.observations[obs.ID]; !ok {
		return repository.ErrObservationNotFound
	}
	copied := *obs
	f.observations[obs.ID] = &copied
	return nil
}

func (f *fakeObservationStore) Delete(id string) error {
	delete(f.observations, id)
	return nil
}

func (f *fakeObservationStore) ListByYear(yearID string) ([]models.Observation, error) {
	var out []models.Observation
	for _, obs := range f.observations {
		if obs.YearID == yearID {
			out = append(out, *obs)
		}
	}
	return out, nil
}

func (f *fakeObservationStore) ListPendingForHost(hostUserID uint) ([]models.Observation, error) {
	var out []models.Observation
	for _, obs := range f.observations {
		if obs.Status == models.StatusPending && obs.HostUserID != nil && *obs.HostUserID == hostUserID {
			out = append(out, *obs)
		}
	}
	return out, nil
}

type fakeYearStore struct {
	years  map[string]*models.ObservationYear
	nextID int
}

func newFakeYearStore() *fakeYearStore {
	return &fakeYearStore{years: make(map[string]*models.ObservationYear)}
}

func (f *fakeYearStore) GetByID(id string) (*models.ObservationYear, error) {
	year, ok := f.years[id]
	if !ok {
		return nil, repository.ErrObservationYearNotFound
	}
	copied := *year
	return &copied, nil
}

func (f *fakeYearStore) GetOrCreate(observerID uint, calendarYear int) (*models.ObservationYear, error) {
	for _, year := range f.years {
		if year.ObserverID == observerID && year.Year == calendarYear {
			copied := *year
			return &copied, nil
		}
	}
	f.nextID++
	year := &models.ObservationYear{
		ID:         fmt.Sprintf("year-%d", f.nextID),
		ObserverID: observerID,
		Year:       calendarYear,
		Status:     models.YearStatusOpen,
	}
	f.years[year.ID] = year
	copied := *year
	return &copied, nil
}

func (f *fakeYearStore) UpdateStatus(id, status string) error {
	year, ok := f.years[id]
	if !ok {
		return repository.ErrObservationYearNotFound
	}
	year.Status = status
	return nil
}

func (f *fakeYearStore) ListByObserver(observerID uint) ([]models.ObservationYear, error) {
	var out []models.ObservationYear
	for _, year := range f.years {
		if year.ObserverID == observerID {
			out = append(out, *year)
		}
	}
	return out, nil
}

type fakeNotificationStore struct {
	created        []models.Notification
	resolvedIDs    []string
	createErr      error
	markReadCalled int
}

func (f *fakeNotificationStore) Create(n *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeNotificationStore) MarkReadByObservation(observationID string) error {
	f.markReadCalled++
	f.resolvedIDs = append(f.resolvedIDs, observationID)
	return nil
}

type fakeProfileReader struct {
	profiles map[uint]*models.Profile
}

func (f *fakeProfileReader) GetByUserID(userID uint) (*models.Profile, error) {
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return profile, nil
}

// Observer is member 1, a known host is member 7 ("Kari Nordmann").
func observationFixture() (*ObservationService, *fakeObservationStore, *fakeYearStore, *fakeNotificationStore) {
	observations := newFakeObservationStore()
	years := newFakeYearStore()
	notifications := &fakeNotificationStore{}
	hosts := &fakeJudgeDirectory{members: map[string]uint{"kari nordmann": 7}}
	profiles := &fakeProfileReader{profiles: map[uint]*models.Profile{
		1: {UserID: 1, FullName: "Per Olsen"},
		7: {UserID: 7, FullName: "Kari Nordmann"},
	}}
	svc := NewObservationService(observations, years, notifications, hosts, profiles)
	return svc, observations, years, notifications
}

func observationInput(hostName string) ObservationInput {
	level := "MB"
	horses := 14
	return ObservationInput{
		ObservationDate: time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC),
		Location:        "Drammen",
		ClassLevel:      &level,
		NumberOfHorses:  &horses,
		HostName:        hostName,
	}
}

func TestCreateObservationNotifiesHost(t *testing.T) {
	svc, _, years, notifications := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	if obs.Status != models.StatusPending {
		t.Errorf("New observation should be pending, got %s", obs.Status)
	}
	if obs.HostUserID == nil || *obs.HostUserID != 7 {
		t.Errorf("Host should resolve to member 7, got %v", obs.HostUserID)
	}

	year, err := years.GetByID(obs.YearID)
	if err != nil {
		t.Fatalf("Year should exist: %v", err)
	}
	if year.Year != 2025 || year.ObserverID != 1 {
		t.Errorf("Observation should land in the observer's 2025 year, got %+v", year)
	}

	if len(notifications.created) != 1 {
		t.Fatalf("Expected one host notification, got %d", len(notifications.created))
	}
	n := notifications.created[0]
	if n.UserID != 7 {
		t.Errorf("Notification should go to the host, got user %d", n.UserID)
	}
	if n.Type != models.NotificationObservationRequest {
		t.Errorf("Unexpected notification type: %s", n.Type)
	}
	if !strings.Contains(n.Message, "Per Olsen") {
		t.Errorf("Notification should name the observer, got %q", n.Message)
	}
}

func TestCreateObservationUnknownHost(t *testing.T) {
	svc, _, _, notifications := observationFixture()

	obs, err := svc.Create(1, observationInput("Ukjent Vert"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	if obs.HostUserID != nil {
		t.Errorf("Unknown host must not resolve, got %v", *obs.HostUserID)
	}
	if len(notifications.created) != 0 {
		t.Errorf("No notification without a resolved host, got %d", len(notifications.created))
	}
}

func TestObservationYearReused(t *testing.T) {
	svc, _, years, _ := observationFixture()

	first, err := svc.Create(1, observationInput("Ukjent Vert"))
	if err != nil {
		t.Fatalf("Failed to create first observation: %v", err)
	}
	second, err := svc.Create(1, observationInput("Ukjent Vert"))
	if err != nil {
		t.Fatalf("Failed to create second observation: %v", err)
	}

	if first.YearID != second.YearID {
		t.Errorf("Same calendar year should map to the same year row, got %s and %s", first.YearID, second.YearID)
	}
	if len(years.years) != 1 {
		t.Errorf("Expected a single year row, got %d", len(years.years))
	}
}

func TestApproveObservation(t *testing.T) {
	svc, store, _, notifications := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	approved, err := svc.Approve(7, obs.ID)
	if err != nil {
		t.Fatalf("Failed to approve: %v", err)
	}
	if approved.Status != models.StatusApproved {
		t.Errorf("Expected approved status, got %s", approved.Status)
	}

	if notifications.markReadCalled != 1 || notifications.resolvedIDs[0] != obs.ID {
		t.Error("Approval should resolve the host's request notifications")
	}

	// Create + approve notifications
	if len(notifications.created) != 2 {
		t.Fatalf("Expected two notifications, got %d", len(notifications.created))
	}
	n := notifications.created[1]
	if n.UserID != 1 {
		t.Errorf("Decision notification should go to the observer, got user %d", n.UserID)
	}
	if n.Type != models.NotificationObservationApproved {
		t.Errorf("Unexpected notification type: %s", n.Type)
	}

	if stored := store.observations[obs.ID]; stored.Status != models.StatusApproved {
		t.Error("Approval must be persisted")
	}
}

func TestApproveRequiresHost(t *testing.T) {
	svc, _, _, _ := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	if _, err := svc.Approve(9, obs.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Only the resolved host may approve, got %v", err)
	}
}

func TestApproveAlreadyDecided(t *testing.T) {
	svc, _, _, _ := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}
	if _, err := svc.Approve(7, obs.ID); err != nil {
		t.Fatalf("First approval failed: %v", err)
	}

	if _, err := svc.Approve(7, obs.ID); !errors.Is(err, ErrObservationDecided) {
		t.Errorf("Second decision should fail with ErrObservationDecided, got %v", err)
	}
}

func TestRejectRequiresComment(t *testing.T) {
	svc, _, _, _ := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	if _, err := svc.Reject(7, obs.ID, ""); !errors.Is(err, ErrCommentRequired) {
		t.Errorf("Rejection without comment should fail, got %v", err)
	}
}

func TestRejectObservation(t *testing.T) {
	svc, _, _, notifications := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	rejected, err := svc.Reject(7, obs.ID, "Feil dato, stevnet var 11. mai")
	if err != nil {
		t.Fatalf("Failed to reject: %v", err)
	}
	if rejected.Status != models.StatusRejected {
		t.Errorf("Expected rejected status, got %s", rejected.Status)
	}
	if rejected.RejectionComment == nil || *rejected.RejectionComment != "Feil dato, stevnet var 11. mai" {
		t.Errorf("Rejection comment should be stored, got %v", rejected.RejectionComment)
	}

	n := notifications.created[len(notifications.created)-1]
	if n.Type != models.NotificationObservationRejected {
		t.Errorf("Unexpected notification type: %s", n.Type)
	}
	if !strings.Contains(n.Message, "Feil dato") {
		t.Errorf("Observer should see the rejection comment, got %q", n.Message)
	}
}

func TestResubmitRejectedObservation(t *testing.T) {
	svc, _, _, notifications := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}
	if _, err := svc.Reject(7, obs.ID, "Feil sted"); err != nil {
		t.Fatalf("Failed to reject: %v", err)
	}

	before := len(notifications.created)
	updated, err := svc.Update(1, obs.ID, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to resubmit: %v", err)
	}

	if updated.Status != models.StatusPending {
		t.Errorf("Resubmitted observation should be pending, got %s", updated.Status)
	}
	if updated.RejectionComment != nil {
		t.Errorf("Resubmit should clear the rejection comment, got %q", *updated.RejectionComment)
	}
	if len(notifications.created) != before+1 {
		t.Errorf("Resubmit should ask the host again, got %d new notifications", len(notifications.created)-before)
	}
}

func TestUpdatePendingDoesNotRenotify(t *testing.T) {
	svc, _, _, notifications := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	before := len(notifications.created)
	if _, err := svc.Update(1, obs.ID, observationInput("Kari Nordmann")); err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if len(notifications.created) != before {
		t.Error("Editing a pending observation must not renotify the host")
	}
}

func TestUpdateApprovedObservation(t *testing.T) {
	svc, _, _, _ := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}
	if _, err := svc.Approve(7, obs.ID); err != nil {
		t.Fatalf("Failed to approve: %v", err)
	}

	if _, err := svc.Update(1, obs.ID, observationInput("Kari Nordmann")); !errors.Is(err, ErrObservationApproved) {
		t.Errorf("Approved observations must be locked, got %v", err)
	}
	if err := svc.Delete(1, obs.ID); !errors.Is(err, ErrObservationApproved) {
		t.Errorf("Approved observations must not be deletable, got %v", err)
	}
}

func TestClosedYearLocksEntries(t *testing.T) {
	svc, _, _, _ := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	if _, err := svc.SetYearStatus(obs.YearID, models.YearStatusClosed); err != nil {
		t.Fatalf("Failed to close year: %v", err)
	}

	if _, err := svc.Update(1, obs.ID, observationInput("Kari Nordmann")); !errors.Is(err, ErrYearClosed) {
		t.Errorf("Editing in a closed year must fail, got %v", err)
	}
	if err := svc.Delete(1, obs.ID); !errors.Is(err, ErrYearClosed) {
		t.Errorf("Deleting in a closed year must fail, got %v", err)
	}
	if _, err := svc.Create(1, observationInput("Kari Nordmann")); !errors.Is(err, ErrYearClosed) {
		t.Errorf("New entries in a closed year must fail, got %v", err)
	}
}

func TestReopenedYearAcceptsEntries(t *testing.T) {
	svc, _, _, _ := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	if _, err := svc.SetYearStatus(obs.YearID, models.YearStatusSubmitted); err != nil {
		t.Fatalf("Failed to mark year submitted: %v", err)
	}
	if _, err := svc.Update(1, obs.ID, observationInput("Kari Nordmann")); !errors.Is(err, ErrYearClosed) {
		t.Errorf("A submitted year locks entries too, got %v", err)
	}

	year, err := svc.SetYearStatus(obs.YearID, models.YearStatusOpen)
	if err != nil {
		t.Fatalf("Failed to reopen year: %v", err)
	}
	if year.Status != models.YearStatusOpen {
		t.Errorf("Expected open status, got %s", year.Status)
	}
	if _, err := svc.Update(1, obs.ID, observationInput("Kari Nordmann")); err != nil {
		t.Errorf("Reopened year should accept edits, got %v", err)
	}
}

func TestSetYearStatusValidation(t *testing.T) {
	svc, _, _, _ := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	if _, err := svc.SetYearStatus(obs.YearID, "archived"); !errors.Is(err, ErrYearStatusUnknown) {
		t.Errorf("Unknown status should be rejected, got %v", err)
	}
	if _, err := svc.SetYearStatus("no-such-year", models.YearStatusClosed); !errors.Is(err, repository.ErrObservationYearNotFound) {
		t.Errorf("Unknown year should be reported, got %v", err)
	}
}

func TestListByYearOwnership(t *testing.T) {
	svc, _, _, _ := observationFixture()

	obs, err := svc.Create(1, observationInput("Kari Nordmann"))
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	if _, err := svc.ListByYear(2, obs.YearID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Another member must not list the year, got %v", err)
	}

	list, err := svc.ListByYear(1, obs.YearID)
	if err != nil {
		t.Fatalf("Owner should list the year: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected one observation, got %d", len(list))
	}
}
