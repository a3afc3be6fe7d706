package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"dommerportal/internal/models"
	"dommerportal/internal/repository"
	"dommerportal/internal/testutil"
)

// createMember inserts a user with an approved profile and returns the user ID
func createMember(t *testing.T, db *sql.DB, email, fullName string) uint {
	t.Helper()

	users := repository.NewUserRepository(db)
	profiles := repository.NewProfileRepository(db)

	user := &models.User{Email: email, PasswordHash: "hash"}
	if err := users.Create(user); err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}

	profile := &models.Profile{
		UserID:         user.ID,
		FullName:       fullName,
		ApprovalStatus: models.StatusApproved,
		Role:           models.RoleUser,
	}
	if err := profiles.Create(profile); err != nil {
		t.Fatalf("Failed to create profile for %s: %v", email, err)
	}

	return user.ID
}

func TestFindJudgeByName(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	profiles := repository.NewProfileRepository(containers.DB)

	kariID := createMember(t, containers.DB, "kari@test.com", "Kari Nordmann")
	createMember(t, containers.DB, "ola@test.com", "Ola Hansen")

	// Lookup is case-insensitive
	profile, err := profiles.FindJudgeByName("kari nordmann")
	if err != nil {
		t.Fatalf("Failed to find judge: %v", err)
	}
	if profile.UserID != kariID {
		t.Errorf("Expected user %d, got %d", kariID, profile.UserID)
	}

	if _, err := profiles.FindJudgeByName("Ingen Person"); !errors.Is(err, repository.ErrProfileNotFound) {
		t.Errorf("Expected ErrProfileNotFound, got %v", err)
	}
}

func TestFindJudgeByNameDuplicates(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	profiles := repository.NewProfileRepository(containers.DB)

	firstID := createMember(t, containers.DB, "first@test.com", "Kari Nordmann")
	createMember(t, containers.DB, "second@test.com", "Kari Nordmann")

	// Duplicate names resolve deterministically to the oldest account
	profile, err := profiles.FindJudgeByName("Kari Nordmann")
	if err != nil {
		t.Fatalf("Failed to find judge: %v", err)
	}
	if profile.UserID != firstID {
		t.Errorf("Expected the oldest account %d, got %d", firstID, profile.UserID)
	}
}

func TestReportPayloadRoundtrip(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	reports := repository.NewReportRepository(containers.DB)
	userID := createMember(t, containers.DB, "judge@test.com", "Dommer Test")

	total := 68.4
	status := models.ReportStatusDraft
	report := &models.JudgeMeetingReport{
		UserID:   userID,
		ShowDate: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Location: "Øvrevoll",
		Status:   &status,
		Payload: models.ReportPayload{
			ClassLevel:   "MB",
			RiderName:    "Per Olsen",
			HorseName:    "Balder",
			TotalPercent: &total,
			Scores:       map[string]float64{"Kontakt": 7, "Schwung": 6.5},
			Comments:     map[string]string{"Kontakt": "Stabil forbindelse"},
			ImagePaths:   []string{"1/100-a.png"},
		},
	}
	if err := reports.Create(report); err != nil {
		t.Fatalf("Failed to create report: %v", err)
	}

	loaded, err := reports.GetByID(report.ID)
	if err != nil {
		t.Fatalf("Failed to load report: %v", err)
	}

	if loaded.Location != "Øvrevoll" {
		t.Errorf("Unexpected location: %s", loaded.Location)
	}
	if loaded.Payload.Scores["Schwung"] != 6.5 {
		t.Errorf("Scores should roundtrip, got %v", loaded.Payload.Scores)
	}
	if loaded.Payload.Comments["Kontakt"] != "Stabil forbindelse" {
		t.Errorf("Comments should roundtrip, got %v", loaded.Payload.Comments)
	}
	if len(loaded.Payload.ImagePaths) != 1 || loaded.Payload.ImagePaths[0] != "1/100-a.png" {
		t.Errorf("Image paths should roundtrip, got %v", loaded.Payload.ImagePaths)
	}
	if loaded.EffectiveStatus() != models.ReportStatusDraft {
		t.Errorf("Expected draft status, got %s", loaded.EffectiveStatus())
	}
}

func TestReportLegacyStatusRows(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	reports := repository.NewReportRepository(containers.DB)
	userID := createMember(t, containers.DB, "judge@test.com", "Dommer Test")

	// Rows from before the status column carry NULL and mark the
	// lifecycle in the payload instead
	_, err := containers.DB.Exec(`
		INSERT INTO judge_meeting_reports (id, user_id, show_date, location, status, payload, created_at, updated_at)
		VALUES ('legacy-1', $1, '2023-05-01', 'Drammen', NULL, '{"draft": false}', NOW(), NOW()),
		       ('legacy-2', $1, '2023-05-02', 'Drammen', NULL, '{}', NOW(), NOW())
	`, userID)
	if err != nil {
		t.Fatalf("Failed to insert legacy rows: %v", err)
	}

	submitted, err := reports.GetByID("legacy-1")
	if err != nil {
		t.Fatalf("Failed to load legacy row: %v", err)
	}
	if !submitted.IsSubmitted() {
		t.Error("A legacy row with draft=false counts as submitted")
	}

	draft, err := reports.GetByID("legacy-2")
	if err != nil {
		t.Fatalf("Failed to load legacy row: %v", err)
	}
	if draft.EffectiveStatus() != models.ReportStatusDraft {
		t.Errorf("A legacy row without markers counts as draft, got %s", draft.EffectiveStatus())
	}
}

func TestObservationYearGetOrCreate(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	years := repository.NewObservationYearRepository(containers.DB)
	userID := createMember(t, containers.DB, "observer@test.com", "Observatør Test")

	first, err := years.GetOrCreate(userID, 2025)
	if err != nil {
		t.Fatalf("Failed to create year: %v", err)
	}
	second, err := years.GetOrCreate(userID, 2025)
	if err != nil {
		t.Fatalf("Failed to fetch year: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("GetOrCreate should be idempotent, got %s and %s", first.ID, second.ID)
	}

	other, err := years.GetOrCreate(userID, 2024)
	if err != nil {
		t.Fatalf("Failed to create second year: %v", err)
	}
	if other.ID == first.ID {
		t.Error("Different calendar years need different rows")
	}
}

func TestObservationYearUpdateStatus(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	years := repository.NewObservationYearRepository(containers.DB)
	userID := createMember(t, containers.DB, "observer@test.com", "Observatør Test")

	year, err := years.GetOrCreate(userID, 2025)
	if err != nil {
		t.Fatalf("Failed to create year: %v", err)
	}
	if year.Status != models.YearStatusOpen {
		t.Fatalf("New years start open, got %s", year.Status)
	}

	if err := years.UpdateStatus(year.ID, models.YearStatusClosed); err != nil {
		t.Fatalf("Failed to close year: %v", err)
	}
	closed, err := years.GetByID(year.ID)
	if err != nil {
		t.Fatalf("Failed to reload year: %v", err)
	}
	if closed.Status != models.YearStatusClosed {
		t.Errorf("Expected closed status, got %s", closed.Status)
	}

	err = years.UpdateStatus("00000000-0000-0000-0000-000000000000", models.YearStatusClosed)
	if !errors.Is(err, repository.ErrObservationYearNotFound) {
		t.Errorf("Unknown year should be reported, got %v", err)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	outbox := repository.NewOutboxRepository(containers.DB)
	reports := repository.NewReportRepository(containers.DB)
	userID := createMember(t, containers.DB, "judge@test.com", "Dommer Test")

	status := models.ReportStatusSubmitted
	report := &models.JudgeMeetingReport{
		UserID:   userID,
		ShowDate: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Location: "Øvrevoll",
		Status:   &status,
	}
	if err := reports.Create(report); err != nil {
		t.Fatalf("Failed to create report: %v", err)
	}

	if err := outbox.Enqueue(report.ID, "post@dressurdommer.no", "smtp unreachable"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	pending, err := outbox.ListPending(5)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected one pending entry, got %d", len(pending))
	}
	entry := pending[0]
	if entry.ReportID != report.ID {
		t.Errorf("Unexpected report ID: %s", entry.ReportID)
	}

	if err := outbox.MarkFailed(entry.ID, "still unreachable"); err != nil {
		t.Fatalf("Failed to mark failed: %v", err)
	}
	pending, err = outbox.ListPending(5)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Failed entry should stay pending, got %d", len(pending))
	}
	if pending[0].Attempts != entry.Attempts+1 {
		t.Errorf("Failure should increment attempts, got %d", pending[0].Attempts)
	}

	if err := outbox.MarkSent(entry.ID); err != nil {
		t.Fatalf("Failed to mark sent: %v", err)
	}
	pending, err = outbox.ListPending(5)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Sent entries must leave the queue, got %d", len(pending))
	}
}

func TestOutboxMaxAttempts(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	outbox := repository.NewOutboxRepository(containers.DB)
	reports := repository.NewReportRepository(containers.DB)
	userID := createMember(t, containers.DB, "judge@test.com", "Dommer Test")

	status := models.ReportStatusSubmitted
	report := &models.JudgeMeetingReport{
		UserID:   userID,
		ShowDate: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Location: "Øvrevoll",
		Status:   &status,
	}
	if err := reports.Create(report); err != nil {
		t.Fatalf("Failed to create report: %v", err)
	}
	if err := outbox.Enqueue(report.ID, "post@dressurdommer.no", "smtp unreachable"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	pending, err := outbox.ListPending(3)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	id := pending[0].ID

	for i := 0; i < 3; i++ {
		if err := outbox.MarkFailed(id, fmt.Sprintf("attempt %d", i+1)); err != nil {
			t.Fatalf("Failed to mark failed: %v", err)
		}
	}

	pending, err = outbox.ListPending(3)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Entries past the attempt limit must not be retried, got %d", len(pending))
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	sessions := repository.NewSessionRepository(containers.DB)
	userID := createMember(t, containers.DB, "judge@test.com", "Dommer Test")

	expired := &models.Session{
		JTI:       "jti-expired",
		UserID:    userID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	active := &models.Session{
		JTI:       "jti-active",
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := sessions.Create(expired); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err := sessions.Create(active); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	removed, err := sessions.DeleteExpired()
	if err != nil {
		t.Fatalf("Failed to delete expired sessions: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected one removed session, got %d", removed)
	}

	if _, err := sessions.GetByJTI("jti-active"); err != nil {
		t.Errorf("Active session should survive: %v", err)
	}
	if _, err := sessions.GetByJTI("jti-expired"); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}
