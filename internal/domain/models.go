package domain

import "time"

// Page is one blob produced by splitting an uploaded document.
type Page struct {
	Number      int    `json:"number"` // 1-based
	Data        []byte `json:"data"`
	ContentType string `json:"content_type"`
}

// AssignmentStatus is the marketplace state of a worker's assignment.
type AssignmentStatus string

const (
	AssignmentSubmitted AssignmentStatus = "Submitted"
	AssignmentApproved  AssignmentStatus = "Approved"
	AssignmentRejected  AssignmentStatus = "Rejected"
	AssignmentAccepted  AssignmentStatus = "Accepted"
	AssignmentReturned  AssignmentStatus = "Returned"
	AssignmentAbandoned AssignmentStatus = "Abandoned"
)

// Terminal reports whether the assignment reached an accepted end state.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentSubmitted || s == AssignmentApproved
}

// ContentQuestionID is the answer key workers fill in with the page text.
const ContentQuestionID = "content"

// Answer is a single question/answer pair inside an answer set.
type Answer struct {
	QuestionID string `json:"question_id"`
	FreeText   string `json:"free_text"`
}

// AnswerSet is one submitted form.
type AnswerSet []Answer

// Assignment is a worker's claim on a marketplace task.
type Assignment struct {
	ID          string           `json:"id"`
	WorkerID    string           `json:"worker_id,omitempty"`
	Status      AssignmentStatus `json:"status"`
	Answers     []AnswerSet      `json:"answers,omitempty"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
}

// TaskSpec describes a task to be created on the marketplace.
type TaskSpec struct {
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Keywords           []string      `json:"keywords"`
	RewardCents        int64         `json:"reward_cents"`
	QuestionURL        string        `json:"question_url"`
	FrameHeight        int           `json:"frame_height"`
	MaxAssignments     int           `json:"max_assignments"`
	Lifetime           time.Duration `json:"lifetime"`
	AssignmentDuration time.Duration `json:"assignment_duration"`
}

// CaptureRequest asks the gateway to move escrowed funds.
type CaptureRequest struct {
	AmountCents    int64
	SenderToken    string
	RecipientToken string
	CallerToken    string
	// Reference is passed through as the gateway idempotency key.
	Reference string
}

// CaptureResult is the gateway's answer to a capture.
type CaptureResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}
