package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"dommerportal/internal/config"
	"dommerportal/internal/models"
)

type fakeOutboxQueue struct {
	entries []models.OutboxEntry
	listErr error
	sent    []uint
	failed  map[uint]string
}

func (f *fakeOutboxQueue) ListPending(_ int) ([]models.OutboxEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entries, nil
}

func (f *fakeOutboxQueue) MarkSent(id uint) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutboxQueue) MarkFailed(id uint, lastError string) error {
	if f.failed == nil {
		f.failed = make(map[uint]string)
	}
	f.failed[id] = lastError
	return nil
}

type fakeReportDispatcher struct {
	failing    map[string]error
	calls      []string
	recipients []string
}

func (f *fakeReportDispatcher) DispatchTo(_ context.Context, reportID, recipient string) error {
	f.calls = append(f.calls, reportID)
	f.recipients = append(f.recipients, recipient)
	if err, ok := f.failing[reportID]; ok {
		return err
	}
	return nil
}

type fakeSessionCleaner struct {
	removed int64
	err     error
}

func (f *fakeSessionCleaner) DeleteExpired() (int64, error) {
	return f.removed, f.err
}

func schedulerFixture(outbox *fakeOutboxQueue, dispatcher *fakeReportDispatcher) *Scheduler {
	return NewScheduler(outbox, dispatcher, &fakeSessionCleaner{}, &config.SchedulerConfig{
		OutboxMaxAttempts: 5,
	})
}

func TestRetryOutbox(t *testing.T) {
	outbox := &fakeOutboxQueue{
		entries: []models.OutboxEntry{
			{ID: 1, ReportID: "r1", Recipient: "post@dressurdommer.no", Attempts: 1},
			{ID: 2, ReportID: "r2", Recipient: "arkiv@dressurdommer.no", Attempts: 2},
		},
	}
	dispatcher := &fakeReportDispatcher{
		failing: map[string]error{"r2": errors.New("smtp unreachable")},
	}
	s := schedulerFixture(outbox, dispatcher)

	s.retryOutbox()

	if len(dispatcher.calls) != 2 {
		t.Fatalf("Expected both entries dispatched, got %v", dispatcher.calls)
	}
	if dispatcher.recipients[0] != "post@dressurdommer.no" || dispatcher.recipients[1] != "arkiv@dressurdommer.no" {
		t.Errorf("Retries must go to the recipient recorded at queue time, got %v", dispatcher.recipients)
	}
	if len(outbox.sent) != 1 || outbox.sent[0] != 1 {
		t.Errorf("Only the successful entry should be marked sent, got %v", outbox.sent)
	}
	if outbox.failed[2] != "smtp unreachable" {
		t.Errorf("Failed entry should record the error, got %v", outbox.failed)
	}
}

func TestRetryOutboxEmpty(t *testing.T) {
	outbox := &fakeOutboxQueue{}
	dispatcher := &fakeReportDispatcher{}
	s := schedulerFixture(outbox, dispatcher)

	s.retryOutbox()

	if len(dispatcher.calls) != 0 {
		t.Errorf("Nothing should be dispatched, got %v", dispatcher.calls)
	}
}

func TestRetryOutboxListError(t *testing.T) {
	outbox := &fakeOutboxQueue{listErr: errors.New("db down")}
	dispatcher := &fakeReportDispatcher{}
	s := schedulerFixture(outbox, dispatcher)

	s.retryOutbox()

	if len(dispatcher.calls) != 0 {
		t.Errorf("A list failure must not dispatch anything, got %v", dispatcher.calls)
	}
}

func TestStartCronTaskValidation(t *testing.T) {
	s := schedulerFixture(&fakeOutboxQueue{}, &fakeReportDispatcher{})

	cases := []struct {
		expr    string
		wantErr bool
	}{
		{"*/10 * * * *", false},
		{"0 4 * * *", false},
		{"30 2 * * 1", false},
		{"invalid", true},
		{"*/0 * * * *", true},
		{"61 4 * * *", true},
		{"0 25 * * *", true},
		{"0 4 * * 9", true},
	}
	for _, tc := range cases {
		err := s.startCronTask(tc.expr, "test_task", func() {})
		if (err != nil) != tc.wantErr {
			t.Errorf("startCronTask(%q) error = %v, wantErr %v", tc.expr, err, tc.wantErr)
		}
	}
	s.Stop()
}

func TestNextDailyRun(t *testing.T) {
	s := schedulerFixture(&fakeOutboxQueue{}, &fakeReportDispatcher{})

	from := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	next := s.nextDailyRun(from, 12, 30)
	if next.Day() != 1 || next.Hour() != 12 || next.Minute() != 30 {
		t.Errorf("A later time today should run today, got %v", next)
	}

	next = s.nextDailyRun(from, 4, 0)
	if next.Day() != 2 || next.Hour() != 4 {
		t.Errorf("An earlier time should run tomorrow, got %v", next)
	}
}

func TestNextWeekday(t *testing.T) {
	s := schedulerFixture(&fakeOutboxQueue{}, &fakeReportDispatcher{})

	// 2025-06-01 is a Sunday
	from := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	next := s.nextWeekday(from, time.Monday, 4, 0)
	if next.Weekday() != time.Monday || next.Day() != 2 {
		t.Errorf("Expected next Monday, got %v", next)
	}

	next = s.nextWeekday(from, time.Sunday, 4, 0)
	if next.Weekday() != time.Sunday || next.Day() != 8 {
		t.Errorf("A passed time this week should run next week, got %v", next)
	}
}
