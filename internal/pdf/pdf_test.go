package pdf

import (
	"bytes"
	"compress/zlib"
	"io"
	"strings"
	"testing"
	"time"

	"dommerportal/internal/models"
)

func sampleReport() *models.JudgeMeetingReport {
	judge1 := "Kari Nordmann"
	judge2 := "Ola Hansen"
	status := models.ReportStatusSubmitted
	highest := 71.5
	lowest := 68.25
	total := 69.88
	return &models.JudgeMeetingReport{
		ID:       "11111111-1111-1111-1111-111111111111",
		UserID:   1,
		ShowDate: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Location: "Øvrevoll Ridesenter",
		Judge1:   &judge1,
		Judge2:   &judge2,
		Status:   &status,
		Payload: models.ReportPayload{
			ClassLevel:     "MB:1",
			RiderName:      "Nina Berg",
			HorseName:      "Fjellvind",
			TotalPercent:   &total,
			HighestPercent: &highest,
			LowestPercent:  &lowest,
			Scores: map[string]float64{
				"Takt i skritt": 7,
				"Takt i trav":   6.5,
				"Løsgjorthet":   0,
				"Kontakt":       7.5,
			},
			Comments: map[string]string{
				"Takt i skritt": "God takt, kunne vært mer aktiv bakpart gjennom hele programmet.",
				"Kontakt":       "Stabil kontakt",
			},
			Reflection: "God diskusjon om samlingsgrad i klassen.",
		},
	}
}

func TestScoreRowsFiltersUnscoredPoints(t *testing.T) {
	report := sampleReport()
	rows := scoreRows(&report.Payload)

	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}

	// Rows keep protocol order, not map order
	if rows[0].Label != "Takt i skritt" {
		t.Errorf("Expected first row Takt i skritt, got %s", rows[0].Label)
	}
	if rows[1].Label != "Takt i trav" {
		t.Errorf("Expected second row Takt i trav, got %s", rows[1].Label)
	}
	if rows[2].Label != "Kontakt" {
		t.Errorf("Expected third row Kontakt, got %s", rows[2].Label)
	}

	for _, row := range rows {
		if row.Label == "Løsgjorthet" {
			t.Error("Zero-scored point must not be rendered")
		}
	}

	if rows[0].Comment == "" {
		t.Error("Comment should ride along with its row")
	}
	if rows[1].Comment != "" {
		t.Error("Row without comment should have an empty comment")
	}
}

func TestScoreRowsIgnoresUnknownKeys(t *testing.T) {
	payload := &models.ReportPayload{
		Scores: map[string]float64{
			"Ikke et vurderingspunkt": 8,
			"Schwung":                 6,
		},
	}

	rows := scoreRows(payload)
	if len(rows) != 1 || rows[0].Label != "Schwung" {
		t.Fatalf("Expected only Schwung, got %+v", rows)
	}
}

func TestRenderProducesPDF(t *testing.T) {
	renderer := NewRenderer()

	data, err := renderer.Render(sampleReport())
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	if len(data) == 0 {
		t.Fatal("Rendered document should not be empty")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("Output should start with the PDF magic bytes")
	}
}

// pdfContent inflates the document's content streams so text order can
// be asserted on the raw drawing operations
func pdfContent(t *testing.T, data []byte) string {
	t.Helper()
	var out bytes.Buffer
	rest := data
	for {
		i := bytes.Index(rest, []byte("stream"))
		if i < 0 {
			break
		}
		seg := bytes.TrimLeft(rest[i+len("stream"):], "\r\n")
		end := bytes.Index(seg, []byte("endstream"))
		if end < 0 {
			break
		}
		if r, err := zlib.NewReader(bytes.NewReader(seg[:end])); err == nil {
			_, _ = io.Copy(&out, r)
			r.Close()
		} else {
			out.Write(seg[:end])
		}
		rest = seg[end:]
	}
	return out.String()
}

func TestRenderSectionOrder(t *testing.T) {
	renderer := NewRenderer()

	data, err := renderer.Render(sampleReport())
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	content := pdfContent(t, data)
	resultat := strings.Index(content, "Resultat")
	table := strings.Index(content, "Vurderingspunkt")
	reflection := strings.Index(content, "Refleksjon")
	if resultat < 0 || table < 0 || reflection < 0 {
		t.Fatalf("Expected Resultat, Vurderingspunkt and Refleksjon in the document (%d, %d, %d)", resultat, table, reflection)
	}
	if resultat > table {
		t.Error("The result summary belongs before the evaluation table")
	}
	if table > reflection {
		t.Error("The reflection section belongs after the evaluation table")
	}
}

func TestRenderEmptyPayload(t *testing.T) {
	renderer := NewRenderer()
	report := &models.JudgeMeetingReport{
		ShowDate: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Location: "Stavanger",
	}

	data, err := renderer.Render(report)
	if err != nil {
		t.Fatalf("Rendering a minimal report should not fail: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Rendered document should not be empty")
	}
}

func TestFormatScore(t *testing.T) {
	if got := formatScore(7); got != "7" {
		t.Errorf("Expected 7, got %s", got)
	}
	if got := formatScore(6.5); got != "6.5" {
		t.Errorf("Expected 6.5, got %s", got)
	}
}

func TestFormatPercent(t *testing.T) {
	if got := formatPercent(69.5); !strings.HasPrefix(got, "69.50") {
		t.Errorf("Expected two decimals, got %s", got)
	}
}
