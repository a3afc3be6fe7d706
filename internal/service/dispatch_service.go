package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"dommerportal/internal/email"
	"dommerportal/internal/models"
)

// PDFRenderer renders a report into a PDF document
type PDFRenderer interface {
	Render(report *models.JudgeMeetingReport) ([]byte, error)
}

// ReportMailer delivers rendered reports by email
type ReportMailer interface {
	SendReportEmail(to, subject, htmlBody string, attachments []email.Attachment) error
}

// DispatchService turns a submitted report into an email with the PDF and
// protocol images attached
type DispatchService struct {
	store     ReportStore
	renderer  PDFRenderer
	objects   ObjectStore
	mailer    ReportMailer
	recipient string
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(store ReportStore, renderer PDFRenderer, objects ObjectStore, mailer ReportMailer, recipient string) *DispatchService {
	return &DispatchService{
		store:     store,
		renderer:  renderer,
		objects:   objects,
		mailer:    mailer,
		recipient: recipient,
	}
}

// Dispatch sends the report to the configured association address
func (s *DispatchService) Dispatch(ctx context.Context, reportID string) error {
	return s.DispatchTo(ctx, reportID, s.recipient)
}

// DispatchTo fetches the report fresh, renders it and sends it to the
// given address. Retries use the recipient recorded when the report was
// queued. Images that cannot be fetched are skipped so one missing
// object never blocks the whole report.
func (s *DispatchService) DispatchTo(ctx context.Context, reportID, recipient string) error {
	report, err := s.store.GetByID(reportID)
	if err != nil {
		return fmt.Errorf("failed to load report: %w", err)
	}

	document, err := s.renderer.Render(report)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	date := report.ShowDate.Format("02.01.2006")
	attachments := []email.Attachment{
		{
			Filename:    fmt.Sprintf("dommermoterapport-%s.pdf", report.ShowDate.Format("2006-01-02")),
			ContentType: "application/pdf",
			Data:        document,
		},
	}
	attachments = append(attachments, s.imageAttachments(ctx, report)...)

	subject := fmt.Sprintf("Dommermøterapport – %s – %s", date, report.Location)
	body := dispatchBody(report, date)

	if err := s.mailer.SendReportEmail(recipient, subject, body, attachments); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	slog.Info("Report dispatched",
		"report_id", report.ID,
		"recipient", recipient,
		"attachments", len(attachments),
	)
	return nil
}

// imageAttachments downloads the protocol images referenced by the report.
// Attachment names are protokoll-1, protokoll-2 and so on, keeping each
// image's original extension.
func (s *DispatchService) imageAttachments(ctx context.Context, report *models.JudgeMeetingReport) []email.Attachment {
	var attachments []email.Attachment
	for _, key := range report.Payload.ImagePaths {
		data, err := s.objects.Download(ctx, key)
		if err != nil {
			slog.Warn("Skipping unavailable protocol image",
				"report_id", report.ID,
				"key", key,
				"error", err,
			)
			continue
		}
		filename := fmt.Sprintf("protokoll-%d%s", len(attachments)+1, strings.ToLower(path.Ext(key)))
		attachments = append(attachments, email.Attachment{
			Filename:    filename,
			ContentType: email.ContentTypeForFilename(filename),
			Data:        data,
		})
	}
	return attachments
}

func dispatchBody(report *models.JudgeMeetingReport, date string) string {
	judges := strings.Join(report.JudgeNames(), ", ")
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Dommermøterapport</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4a90e2;">Ny dommermøterapport</h2>
        <p>En dommermøterapport er sendt inn via dressurdommer.no.</p>
        <p><strong>Dato:</strong> %s<br>
        <strong>Sted:</strong> %s<br>
        <strong>Dommere:</strong> %s</p>
        <p>Rapporten ligger vedlagt som PDF sammen med eventuelle protokollbilder.</p>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">Dette er en automatisk e-post. Ikke svar på denne meldingen.</p>
    </div>
</body>
</html>
`, date, report.Location, judges)
}
