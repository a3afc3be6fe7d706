package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dommerportal/internal/models"
	"dommerportal/internal/repository"
)

type fakeReportStore struct {
	reports map[string]*models.JudgeMeetingReport
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[string]*models.JudgeMeetingReport)}
}

func (f *fakeReportStore) Create(report *models.JudgeMeetingReport) error {
	copied := *report
	f.reports[report.ID] = &copied
	return nil
}

func (f *fakeReportStore) GetByID(id string) (*models.JudgeMeetingReport, error) {
	report, ok := f.reports[id]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	copied := *report
	return &copied, nil
}

func (f *fakeReportStore) Update(report *models.JudgeMeetingReport) error {
	if _, ok := f.reports[report.ID]; !ok {
		return repository.ErrReportNotFound
	}
	copied := *report
	f.reports[report.ID] = &copied
	return nil
}

func (f *fakeReportStore) ListByUser(userID uint) ([]models.JudgeMeetingReport, error) {
	var out []models.JudgeMeetingReport
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReportStore) Delete(id string) error {
	delete(f.reports, id)
	return nil
}

type fakeJudgeDirectory struct {
	members map[string]uint
}

func (f *fakeJudgeDirectory) FindJudgeByName(name string) (*models.Profile, error) {
	id, ok := f.members[strings.ToLower(name)]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &models.Profile{UserID: id, FullName: name}, nil
}

type fakeObjectStore struct {
	uploads      map[string][]byte
	downloadErrs map[string]error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{uploads: make(map[string][]byte), downloadErrs: make(map[string]error)}
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, body []byte, _ string) error {
	f.uploads[key] = body
	return nil
}

func (f *fakeObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	if err, ok := f.downloadErrs[key]; ok {
		return nil, err
	}
	data, ok := f.uploads[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type fakeDispatcher struct {
	calls []string
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, reportID string) error {
	f.calls = append(f.calls, reportID)
	return f.err
}

type outboxEntry struct {
	reportID  string
	recipient string
	lastError string
}

type fakeOutbox struct {
	entries []outboxEntry
}

func (f *fakeOutbox) Enqueue(reportID, recipient, lastError string) error {
	f.entries = append(f.entries, outboxEntry{reportID, recipient, lastError})
	return nil
}

func newReportService() (*ReportService, *fakeReportStore, *fakeDispatcher, *fakeOutbox, *fakeObjectStore) {
	store := newFakeReportStore()
	judges := &fakeJudgeDirectory{members: map[string]uint{
		"kari nordmann": 7,
		"ola hansen":    9,
	}}
	objects := newFakeObjectStore()
	dispatcher := &fakeDispatcher{}
	outbox := &fakeOutbox{}
	svc := NewReportService(store, judges, objects, dispatcher, outbox, "post@dressurdommer.no")
	return svc, store, dispatcher, outbox, objects
}

func reportInput() ReportInput {
	highest := 70.5
	lowest := 67.0
	return ReportInput{
		ShowDate: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Location: "Øvrevoll",
		Judges:   []string{"KARI NORDMANN", "Ukjent Dommer"},
		Payload: models.ReportPayload{
			HighestPercent: &highest,
			LowestPercent:  &lowest,
		},
	}
}

func TestCreateDraftResolvesJudges(t *testing.T) {
	svc, _, _, _, _ := newReportService()

	report, err := svc.CreateDraft(1, reportInput())
	if err != nil {
		t.Fatalf("Failed to create draft: %v", err)
	}

	if report.EffectiveStatus() != models.ReportStatusDraft {
		t.Errorf("New report should be a draft, got %s", report.EffectiveStatus())
	}
	if report.ID == "" {
		t.Error("Report should get an ID")
	}

	// Resolution is case-insensitive and keeps the entered name
	if report.Judge1 == nil || *report.Judge1 != "KARI NORDMANN" {
		t.Errorf("Judge name should be kept as entered, got %v", report.Judge1)
	}
	if report.Judge1ID == nil || *report.Judge1ID != 7 {
		t.Errorf("Known judge should resolve to member 7, got %v", report.Judge1ID)
	}

	// Unknown names keep a nil ID but stay on the report
	if report.Judge2 == nil || *report.Judge2 != "Ukjent Dommer" {
		t.Errorf("Unknown judge name should be kept, got %v", report.Judge2)
	}
	if report.Judge2ID != nil {
		t.Errorf("Unknown judge must not resolve, got %v", *report.Judge2ID)
	}

	if report.Payload.Deviation != "3.50" {
		t.Errorf("Expected deviation 3.50, got %q", report.Payload.Deviation)
	}
}

func TestSaveDraftRejectsSubmitted(t *testing.T) {
	svc, store, _, _, _ := newReportService()

	report, err := svc.CreateDraft(1, reportInput())
	if err != nil {
		t.Fatalf("Failed to create draft: %v", err)
	}

	status := models.ReportStatusSubmitted
	stored := store.reports[report.ID]
	stored.Status = &status

	if _, err := svc.SaveDraft(1, report.ID, reportInput()); !errors.Is(err, ErrReportImmutable) {
		t.Errorf("Expected ErrReportImmutable, got %v", err)
	}
}

func TestSaveDraftLegacySubmittedRow(t *testing.T) {
	svc, store, _, _, _ := newReportService()

	// Legacy rows have no status column; draft=false in the payload marks
	// them submitted and they must be just as immutable
	notDraft := false
	store.reports["legacy"] = &models.JudgeMeetingReport{
		ID:      "legacy",
		UserID:  1,
		Payload: models.ReportPayload{Draft: &notDraft},
	}

	if _, err := svc.SaveDraft(1, "legacy", reportInput()); !errors.Is(err, ErrReportImmutable) {
		t.Errorf("Expected ErrReportImmutable for legacy submitted row, got %v", err)
	}
}

func TestSaveDraftOwnerOnly(t *testing.T) {
	svc, _, _, _, _ := newReportService()

	report, err := svc.CreateDraft(1, reportInput())
	if err != nil {
		t.Fatalf("Failed to create draft: %v", err)
	}

	if _, err := svc.SaveDraft(2, report.ID, reportInput()); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestSubmitDispatchesReport(t *testing.T) {
	svc, store, dispatcher, outbox, _ := newReportService()

	draft, err := svc.CreateDraft(1, reportInput())
	if err != nil {
		t.Fatalf("Failed to create draft: %v", err)
	}

	report, queued, err := svc.Submit(context.Background(), 1, draft.ID)
	if err != nil {
		t.Fatalf("Failed to submit: %v", err)
	}

	if !report.IsSubmitted() {
		t.Error("Report should be submitted")
	}
	if queued {
		t.Error("Successful dispatch must not report a deferred delivery")
	}
	if report.SubmittedAt == nil {
		t.Error("SubmittedAt should be set")
	}
	if stored := store.reports[draft.ID]; !stored.IsSubmitted() {
		t.Error("Submit must be persisted before dispatch")
	}

	if len(dispatcher.calls) != 1 || dispatcher.calls[0] != draft.ID {
		t.Errorf("Expected one dispatch for %s, got %v", draft.ID, dispatcher.calls)
	}
	if len(outbox.entries) != 0 {
		t.Errorf("Successful dispatch must not hit the outbox, got %v", outbox.entries)
	}
}

func TestSubmitQueuesOnDispatchFailure(t *testing.T) {
	svc, _, dispatcher, outbox, _ := newReportService()
	dispatcher.err = errors.New("smtp unreachable")

	draft, err := svc.CreateDraft(1, reportInput())
	if err != nil {
		t.Fatalf("Failed to create draft: %v", err)
	}

	report, queued, err := svc.Submit(context.Background(), 1, draft.ID)
	if err != nil {
		t.Fatalf("Submit must succeed even when dispatch fails: %v", err)
	}
	if !report.IsSubmitted() {
		t.Error("Report should be submitted despite the dispatch failure")
	}
	if !queued {
		t.Error("Deferred delivery should be reported to the caller")
	}

	if len(outbox.entries) != 1 {
		t.Fatalf("Expected one outbox entry, got %d", len(outbox.entries))
	}
	entry := outbox.entries[0]
	if entry.reportID != draft.ID {
		t.Errorf("Outbox entry should reference the report, got %s", entry.reportID)
	}
	if entry.recipient != "post@dressurdommer.no" {
		t.Errorf("Unexpected recipient: %s", entry.recipient)
	}
	if !strings.Contains(entry.lastError, "smtp unreachable") {
		t.Errorf("Outbox entry should carry the error, got %q", entry.lastError)
	}
}

func TestSubmitTwice(t *testing.T) {
	svc, _, _, _, _ := newReportService()

	draft, err := svc.CreateDraft(1, reportInput())
	if err != nil {
		t.Fatalf("Failed to create draft: %v", err)
	}

	if _, _, err := svc.Submit(context.Background(), 1, draft.ID); err != nil {
		t.Fatalf("First submit failed: %v", err)
	}
	if _, _, err := svc.Submit(context.Background(), 1, draft.ID); !errors.Is(err, ErrReportImmutable) {
		t.Errorf("Second submit should fail with ErrReportImmutable, got %v", err)
	}
}

func TestDeleteSubmittedReport(t *testing.T) {
	svc, _, _, _, _ := newReportService()

	draft, err := svc.CreateDraft(1, reportInput())
	if err != nil {
		t.Fatalf("Failed to create draft: %v", err)
	}
	if _, _, err := svc.Submit(context.Background(), 1, draft.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := svc.Delete(1, draft.ID); !errors.Is(err, ErrReportImmutable) {
		t.Errorf("Submitted report must not be deletable, got %v", err)
	}
}

func TestUploadImageKey(t *testing.T) {
	svc, _, _, _, objects := newReportService()

	key, err := svc.UploadImage(context.Background(), 7, "protokoll.png", []byte{0x89})
	if err != nil {
		t.Fatalf("Failed to upload image: %v", err)
	}

	if !strings.HasPrefix(key, "7/") {
		t.Errorf("Key should be prefixed with the user ID, got %s", key)
	}
	if !strings.HasSuffix(key, "-protokoll.png") {
		t.Errorf("Key should keep the filename, got %s", key)
	}
	if _, ok := objects.uploads[key]; !ok {
		t.Error("Image should be stored under the returned key")
	}
}
