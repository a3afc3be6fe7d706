package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dommerportal/internal/email"
	"dommerportal/internal/middleware"
	"dommerportal/internal/models"
	"dommerportal/internal/repository"
	"dommerportal/internal/service"
)

// maxImageSize limits protocol image uploads to 10 MB
const maxImageSize = 10 << 20

// ReportHandler handles the judge meeting report lifecycle
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type reportRequest struct {
	ShowDate string               `json:"show_date"`
	Location string               `json:"location"`
	Judges   []string             `json:"judges"`
	Payload  models.ReportPayload `json:"payload"`
}

func (req *reportRequest) toInput() (service.ReportInput, error) {
	showDate, err := time.Parse("2006-01-02", req.ShowDate)
	if err != nil {
		return service.ReportInput{}, fmt.Errorf("invalid show date: %w", err)
	}
	return service.ReportInput{
		ShowDate: showDate,
		Location: strings.TrimSpace(req.Location),
		Judges:   req.Judges,
		Payload:  req.Payload,
	}, nil
}

// Create creates a new draft report
// @Summary Create draft report
// @Description Create a new judge meeting report in draft state
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reportRequest true "Report content"
// @Success 201 {object} models.JudgeMeetingReport "Created draft"
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /reports [post]
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid show date, expected YYYY-MM-DD")
		return
	}
	if input.Location == "" {
		respondWithError(w, http.StatusBadRequest, "Location is required")
		return
	}

	report, err := h.reports.CreateDraft(userID, input)
	if err != nil {
		slog.Error("Failed to create report", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusCreated, report)
}

// List lists the current member's reports
// @Summary List reports
// @Description List the authenticated member's reports, newest first
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.JudgeMeetingReport "Reports"
// @Router /reports [get]
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	reports, err := h.reports.List(userID)
	if err != nil {
		slog.Error("Failed to list reports", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, reports)
}

// Get fetches one of the member's reports
// @Summary Get report
// @Description Get a single report owned by the authenticated member
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} models.JudgeMeetingReport "Report"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 404 {object} map[string]string "Report not found"
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	report, err := h.reports.Get(userID, r.PathValue("id"))
	if err != nil {
		h.respondReportError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// Update saves a draft report
// @Summary Save draft
// @Description Update a draft report. Submitted reports reject all writes.
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param request body reportRequest true "Report content"
// @Success 200 {object} models.JudgeMeetingReport "Updated draft"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 409 {object} map[string]string "Report already submitted"
// @Router /reports/{id} [put]
func (h *ReportHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid show date, expected YYYY-MM-DD")
		return
	}

	report, err := h.reports.SaveDraft(userID, r.PathValue("id"), input)
	if err != nil {
		h.respondReportError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

type submitReportResponse struct {
	Report         *models.JudgeMeetingReport `json:"report"`
	DispatchQueued bool                       `json:"dispatch_queued"`
	Warning        string                     `json:"warning,omitempty"`
}

// Submit finalizes a report and sends it to the association
// @Summary Submit report
// @Description Finalize the report. The PDF is generated and emailed; a
// @Description delivery failure is reported as dispatch_queued and retried
// @Description in the background.
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} submitReportResponse "Submitted report"
// @Failure 409 {object} map[string]string "Report already submitted"
// @Router /reports/{id}/submit [post]
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	report, queued, err := h.reports.Submit(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.respondReportError(w, err, userID)
		return
	}

	resp := submitReportResponse{Report: report, DispatchQueued: queued}
	if queued {
		resp.Warning = "Rapporten er sendt inn, men utsendingen feilet og blir forsøkt på nytt."
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// Delete removes a draft report
// @Summary Delete draft
// @Description Delete a draft report. Submitted reports cannot be deleted.
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} map[string]string "Report deleted"
// @Failure 409 {object} map[string]string "Report already submitted"
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	if err := h.reports.Delete(userID, r.PathValue("id")); err != nil {
		h.respondReportError(w, err, userID)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Report deleted",
	})
}

// UploadImage stores a protocol image for later attachment
// @Summary Upload protocol image
// @Description Upload a protocol image. The returned key goes into the
// @Description report payload's imagePaths.
// @Tags Reports
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Protocol image"
// @Success 201 {object} map[string]string "Object key"
// @Failure 400 {object} map[string]string "Invalid upload"
// @Router /reports/images [post]
func (h *ReportHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid or too large upload")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Image file is required")
		return
	}
	defer file.Close()

	if email.ContentTypeForFilename(header.Filename) == "application/octet-stream" {
		respondWithError(w, http.StatusBadRequest, "Only PNG and JPEG images are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	key, err := h.reports.UploadImage(r.Context(), userID, header.Filename, data)
	if err != nil {
		slog.Error("Failed to store protocol image", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{
		"key": key,
	})
}

func (h *ReportHandler) respondReportError(w http.ResponseWriter, err error, userID uint) {
	switch {
	case errors.Is(err, repository.ErrReportNotFound):
		respondWithError(w, http.StatusNotFound, ErrMsgReportNotFound)
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, ErrMsgForbidden)
	case errors.Is(err, service.ErrReportImmutable):
		respondWithError(w, http.StatusConflict, ErrMsgReportSubmitted)
	default:
		slog.Error("Report operation failed", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
	}
}
