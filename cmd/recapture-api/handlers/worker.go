package handlers

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/recapturedocs/recapturedocs/internal/observability"
)

// PreviewAssignmentID is sent by the marketplace while a worker previews a
// task they have not accepted.
const PreviewAssignmentID = "ASSIGNMENT_ID_NOT_AVAILABLE"

// DefaultSubmitBase is used when the marketplace omits turkSubmitTo.
const DefaultSubmitBase = "https://www.mturk.com"

var retypePage = template.Must(template.New("retype").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Type a Page</title></head>
<body>
<p>Retype the text of the page below exactly as it appears. Separate paragraphs with a blank line.</p>
{{if .Preview}}<p><strong>Preview only.</strong> Accept the task to see the page and submit.</p>{{end}}
{{if .PageURL}}<div><embed src="{{.PageURL}}" width="100%" height="500"></div>{{end}}
<form method="POST" action="{{.SubmitURL}}">
<input type="hidden" name="assignmentId" value="{{.AssignmentID}}">
<input type="hidden" name="hitId" value="{{.TaskID}}">
<textarea name="content" rows="20" cols="80"{{if .Preview}} disabled{{end}}></textarea>
<div><input type="submit" value="Submit"{{if .Preview}} disabled{{end}}></div>
</form>
</body>
</html>
`))

// WorkerPage is the data rendered into the worker form.
type WorkerPage struct {
	TaskID       string
	AssignmentID string
	WorkerID     string
	Preview      bool
	PageURL      string
	SubmitURL    string
}

// WorkerHandler serves the page a marketplace worker sees inside the task
// frame.
type WorkerHandler struct {
	logger *observability.Logger
}

// NewWorkerHandler creates a new worker handler.
func NewWorkerHandler(logger *observability.Logger) *WorkerHandler {
	return &WorkerHandler{logger: logger}
}

// NewWorkerPage builds the worker form data from the marketplace's query
// parameters.
func NewWorkerPage(taskID, assignmentID, workerID, submitTo string) WorkerPage {
	p := WorkerPage{
		TaskID:       taskID,
		AssignmentID: assignmentID,
		WorkerID:     workerID,
		Preview:      assignmentID == PreviewAssignmentID,
	}
	if !p.Preview {
		p.PageURL = "/image/" + taskID
	}
	if submitTo == "" {
		submitTo = DefaultSubmitBase
	}
	p.SubmitURL = strings.TrimRight(submitTo, "/") + "/mturk/externalSubmit"
	return p
}

// Process handles GET /process.
func (h *WorkerHandler) Process(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	taskID := q.Get("hitId")
	assignmentID := q.Get("assignmentId")
	if taskID == "" || assignmentID == "" {
		writeError(w, http.StatusBadRequest, "hitId and assignmentId are required", "")
		return
	}

	page := NewWorkerPage(taskID, assignmentID, q.Get("workerId"), q.Get("turkSubmitTo"))
	h.logger.WithContext(r.Context()).Debug().
		Str("task_id", taskID).
		Str("worker_id", page.WorkerID).
		Bool("preview", page.Preview).
		Msg("Serving worker page")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := retypePage.Execute(w, page); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render worker page")
	}
}
