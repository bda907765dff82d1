package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/orchestrator"
)

// DevelHandler serves the development-only routes.
type DevelHandler struct {
	logger  *observability.Logger
	service *orchestrator.Service
}

// NewDevelHandler creates a new devel handler.
func NewDevelHandler(logger *observability.Logger, service *orchestrator.Service) *DevelHandler {
	return &DevelHandler{logger: logger, service: service}
}

// JobListDTO lists every job known to the server.
type JobListDTO struct {
	Jobs  []orchestrator.JobView `json:"jobs"`
	Total int                    `json:"total"`
}

// SubmissionDTO is returned for a sandbox submission.
type SubmissionDTO struct {
	TaskID       string `json:"hitId"`
	AssignmentID string `json:"assignmentId"`
}

// ListJobs handles GET /devel/jobs.
func (h *DevelHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.service.ListJobs()
	writeJSON(w, http.StatusOK, JobListDTO{Jobs: jobs, Total: len(jobs)})
}

// SimulatePayment handles POST /devel/jobs/{jobId}/pay.
func (h *DevelHandler) SimulatePayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.SimulatePayment(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeDomainError(w, "simulated payment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DisableAll handles POST /devel/disable-all.
func (h *DevelHandler) DisableAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.DisableAll(r.Context(), nil)
	if err != nil {
		writeDomainError(w, "disable all failed", err)
		return
	}
	h.logger.WithContext(r.Context()).Warn().
		Int("disabled", report.Disabled).
		Int("jobs", report.Jobs).
		Msg("Disabled all tasks; remove them from other servers too")
	writeJSON(w, http.StatusOK, report)
}

// Export handles GET /devel/export.xlsx.
func (h *DevelHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportXLSX(r.Context())
	if err != nil {
		writeDomainError(w, "export failed", err)
		return
	}
	name := "recapturedocs-jobs-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// SandboxSubmit handles POST /devel/sandbox/mturk/externalSubmit, the form
// target of the worker page when the sandbox marketplace is in use.
func (h *DevelHandler) SandboxSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form", err.Error())
		return
	}
	taskID := r.PostForm.Get("hitId")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "hitId is required", "")
		return
	}

	id, err := h.service.SandboxSubmit(r.Context(), taskID, r.PostForm.Get("workerId"), r.PostForm.Get("content"))
	if err != nil {
		writeDomainError(w, "submission failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SubmissionDTO{TaskID: taskID, AssignmentID: id})
}
