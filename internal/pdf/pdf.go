package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"dommerportal/internal/models"
)

const (
	pageMargin   = 50.0
	scoreColX    = pageMargin + 290
	commentColX  = pageMargin + 350
	commentWidth = 595.28 - pageMargin - commentColX
	rowLineHt    = 12.0
)

// scoreRow is a single evaluation point carrying a given score
type scoreRow struct {
	Label   string
	Score   float64
	Comment string
}

// scoreRows returns the evaluation points to render. Points without a
// score are left out of the table entirely.
func scoreRows(payload *models.ReportPayload) []scoreRow {
	var rows []scoreRow
	for _, point := range models.EvaluationPoints {
		score, ok := payload.Scores[point]
		if !ok || score == 0 {
			continue
		}
		rows = append(rows, scoreRow{
			Label:   point,
			Score:   score,
			Comment: payload.Comments[point],
		})
	}
	return rows
}

// Renderer produces judge meeting report PDFs
type Renderer struct{}

// NewRenderer creates a new PDF renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render writes the report as a single A4 document and returns the raw bytes
func (r *Renderer) Render(report *models.JudgeMeetingReport) ([]byte, error) {
	doc := fpdf.New("P", "pt", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, 70)

	doc.SetFooterFunc(func() {
		doc.SetY(-30)
		doc.SetFont("Helvetica", "", 9)
		doc.CellFormat(0, 10, tr("Produsert på dressurdommer.no"), "", 0, "C", false, 0, "")
	})

	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 20, tr("Dommermøterapport"), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 8)
	doc.SetTextColor(130, 130, 130)
	doc.CellFormat(0, 10, tr(fmt.Sprintf("Rapport %s, opprettet %s", report.ID, report.CreatedAt.Format("02.01.2006"))), "", 1, "L", false, 0, "")
	doc.SetTextColor(0, 0, 0)
	doc.Ln(6)

	payload := &report.Payload

	r.infoLine(doc, tr, "Dato", report.ShowDate.Format("02.01.2006"))
	r.infoLine(doc, tr, "Sted", report.Location)
	judges := strings.Join(report.JudgeNames(), ", ")
	if judges == "" {
		judges = "-"
	}
	r.infoLine(doc, tr, "Dommere", judges)
	r.infoLine(doc, tr, "Klasse", payload.ClassLevel)
	r.infoLine(doc, tr, "Rytter", payload.RiderName)
	r.infoLine(doc, tr, "Hest", payload.HorseName)
	doc.Ln(10)

	r.summary(doc, tr, payload)

	rows := scoreRows(payload)
	if len(rows) > 0 {
		doc.SetFont("Helvetica", "B", 10)
		y := doc.GetY()
		doc.SetXY(pageMargin, y)
		doc.CellFormat(scoreColX-pageMargin, 14, tr("Vurderingspunkt"), "B", 0, "L", false, 0, "")
		doc.SetXY(scoreColX, y)
		doc.CellFormat(commentColX-scoreColX, 14, tr("Karakter"), "B", 0, "L", false, 0, "")
		doc.SetXY(commentColX, y)
		doc.CellFormat(commentWidth, 14, tr("Kommentar"), "B", 1, "L", false, 0, "")
		doc.Ln(4)

		for _, row := range rows {
			y = doc.GetY()
			if y > 841.89-110 {
				doc.AddPage()
				y = doc.GetY()
			}
			doc.SetFont("Helvetica", "", 10)
			doc.SetXY(pageMargin, y)
			doc.CellFormat(scoreColX-pageMargin, rowLineHt, tr(row.Label), "", 0, "L", false, 0, "")
			doc.SetXY(scoreColX, y)
			doc.CellFormat(commentColX-scoreColX, rowLineHt, formatScore(row.Score), "", 0, "L", false, 0, "")
			end := y + rowLineHt
			if row.Comment != "" {
				doc.SetFont("Helvetica", "", 9)
				doc.SetXY(commentColX, y)
				doc.MultiCell(commentWidth, rowLineHt, tr(row.Comment), "", "L", false)
				if doc.GetY() > end {
					end = doc.GetY()
				}
			}
			doc.SetDrawColor(220, 220, 220)
			doc.Line(pageMargin, end+1, 595.28-pageMargin, end+1)
			doc.SetY(end + 3)
		}
		doc.Ln(8)
	}

	if payload.SpecialConditions != "" {
		body := payload.SpecialConditions
		// The elaboration only applies when special conditions were present
		if payload.SpecialConditions == "Ja" && payload.SpecialComment != "" {
			body += "\n" + payload.SpecialComment
		}
		r.textSection(doc, tr, "Spesielle forhold", body)
	}
	r.textSection(doc, tr, "Andre årsaker", payload.OtherCause)
	r.textSection(doc, tr, "Refleksjon", payload.Reflection)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) infoLine(doc *fpdf.Fpdf, tr func(string) string, label, value string) {
	if value == "" {
		return
	}
	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(110, 14, tr(label), "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 14, tr(value), "", 1, "L", false, 0, "")
}

func (r *Renderer) summary(doc *fpdf.Fpdf, tr func(string) string, payload *models.ReportPayload) {
	if payload.TotalPercent == nil && payload.HighestPercent == nil && payload.LowestPercent == nil {
		return
	}
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(0, 16, tr("Resultat"), "", 1, "L", false, 0, "")
	if payload.TotalPercent != nil {
		r.infoLine(doc, tr, "Total %", formatPercent(*payload.TotalPercent))
	}
	if payload.HighestPercent != nil {
		r.infoLine(doc, tr, "Høyeste %", formatPercent(*payload.HighestPercent))
	}
	if payload.LowestPercent != nil {
		r.infoLine(doc, tr, "Laveste %", formatPercent(*payload.LowestPercent))
	}
	if deviation := models.ComputeDeviation(payload.HighestPercent, payload.LowestPercent); deviation != "" {
		r.infoLine(doc, tr, "Avvik", deviation)
	}
	doc.Ln(8)
}

func (r *Renderer) textSection(doc *fpdf.Fpdf, tr func(string) string, title, body string) {
	if body == "" {
		return
	}
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(0, 16, tr(title), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 13, tr(body), "", "L", false)
	doc.Ln(8)
}

func formatScore(score float64) string {
	if score == float64(int(score)) {
		return fmt.Sprintf("%.0f", score)
	}
	return fmt.Sprintf("%.1f", score)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f %%", v)
}
