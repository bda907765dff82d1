package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/orchestrator"
	"github.com/recapturedocs/recapturedocs/internal/payment"
)

// DefaultMaxUploadBytes bounds the size of an uploaded document when no
// limit is configured.
const DefaultMaxUploadBytes = 32 << 20

// JobsHandler handles the customer-facing job lifecycle requests.
type JobsHandler struct {
	logger    *observability.Logger
	service   *orchestrator.Service
	publicURL func(path string) string
	maxUpload int64
}

// NewJobsHandler creates a new jobs handler. publicURL resolves a path
// against the externally reachable base URL.
func NewJobsHandler(logger *observability.Logger, service *orchestrator.Service, publicURL func(string) string, maxUpload int64) *JobsHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &JobsHandler{
		logger:    logger,
		service:   service,
		publicURL: publicURL,
		maxUpload: maxUpload,
	}
}

// UploadFailedDTO is returned when a job was created but not every task
// could be registered.
type UploadFailedDTO struct {
	Error   string               `json:"error"`
	Message string               `json:"message"`
	Detail  string               `json:"detail"`
	Job     orchestrator.JobView `json:"job"`
}

// PaymentDTO carries the payment redirect.
type PaymentDTO struct {
	JobID       string `json:"jobId"`
	RedirectURL string `json:"redirectUrl"`
}

// PaymentOutcomeDTO reports how a payment callback was resolved.
type PaymentOutcomeDTO struct {
	Outcome payment.Outcome      `json:"outcome"`
	Status  string               `json:"status,omitempty"`
	Job     orchestrator.JobView `json:"job"`
}

// Upload handles POST /api/v1/jobs with a multipart "document" field.
func (h *JobsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "document is required", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read document", err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "document is empty", "")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	h.logger.WithContext(ctx).Info().
		Str("filename", header.Filename).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("Document uploaded")

	j, err := h.service.Upload(ctx, data, contentType, header.Filename)
	if err != nil {
		if j != nil {
			writeJSON(w, StatusFor(err), UploadFailedDTO{
				Error:   "task registration incomplete",
				Message: "task registration incomplete",
				Detail:  err.Error(),
				Job:     orchestrator.NewJobView(j),
			})
			return
		}
		writeDomainError(w, "upload failed", err)
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+j.ID)
	writeJSON(w, http.StatusCreated, orchestrator.NewJobView(j))
}

// Status handles GET /api/v1/jobs/{jobId}.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Status(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeDomainError(w, "status failed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Register handles POST /api/v1/jobs/{jobId}/register.
func (h *JobsHandler) Register(w http.ResponseWriter, r *http.Request) {
	j, err := h.service.RetryRegistration(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeDomainError(w, "registration failed", err)
		return
	}
	writeJSON(w, http.StatusOK, orchestrator.NewJobView(j))
}

// InitiatePayment handles POST /api/v1/jobs/{jobId}/payment. With
// ?redirect=true the client is sent straight to the gateway.
func (h *JobsHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	redirect, err := h.service.InitiatePayment(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, "payment initiation failed", err)
		return
	}

	if follow, _ := strconv.ParseBool(r.URL.Query().Get("redirect")); follow {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, PaymentDTO{JobID: jobID, RedirectURL: redirect})
}

// CompletePayment handles GET /complete_payment/{jobId}, the gateway's
// return URL.
func (h *JobsHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	cb, err := payment.CallbackFromQuery(h.publicURL(r.URL.Path), r.URL.RawQuery)
	if err != nil {
		writeDomainError(w, "invalid callback", err)
		return
	}

	outcome, err := h.service.CompletePayment(ctx, jobID, cb)
	if err != nil {
		h.logger.WithContext(ctx).WithJob(jobID).Warn().Err(err).Msg("Payment completion failed")
		writeDomainError(w, "payment completion failed", err)
		return
	}

	view, err := h.service.Get(jobID)
	if err != nil {
		writeDomainError(w, "status failed", err)
		return
	}

	resp := PaymentOutcomeDTO{Outcome: outcome, Job: view}
	status := http.StatusOK
	if outcome == payment.OutcomeDeclined {
		resp.Status = cb.Status
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, resp)
}

// Results handles GET /api/v1/jobs/{jobId}/results. With ?format=text the
// body is the bare text.
func (h *JobsHandler) Results(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetResults(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeDomainError(w, "results failed", err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, res.Text)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Image handles GET /image/{taskId}.
func (h *JobsHandler) Image(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Image(r.Context(), chi.URLParam(r, "taskId"))
	if err != nil {
		writeDomainError(w, "image not found", err)
		return
	}

	contentType := page.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(page.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(page.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(page.Data)
}
