package job

import (
	"time"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

const (
	retypeTitle       = "Type a Page"
	retypeDescription = "You will read a scanned page and retype its textual contents."
)

var retypeKeywords = []string{"typing", "page", "rekey", "retype"}

// TaskTemplate describes the marketplace task posted for each page.
type TaskTemplate struct {
	Title              string
	Description        string
	Keywords           []string
	QuestionURL        string
	FrameHeight        int
	MaxAssignments     int
	Lifetime           time.Duration
	AssignmentDuration time.Duration
}

// RetypePageTemplate returns the standard "Type a Page" template whose
// external question is served at questionURL.
func RetypePageTemplate(questionURL string) TaskTemplate {
	return TaskTemplate{
		Title:              retypeTitle,
		Description:        retypeDescription,
		Keywords:           retypeKeywords,
		QuestionURL:        questionURL,
		FrameHeight:        600,
		MaxAssignments:     1,
		Lifetime:           7 * 24 * time.Hour,
		AssignmentDuration: time.Hour,
	}
}

// Spec renders the template as a marketplace task spec at the fixed reward.
func (t TaskTemplate) Spec() domain.TaskSpec {
	return domain.TaskSpec{
		Title:              t.Title,
		Description:        t.Description,
		Keywords:           append([]string(nil), t.Keywords...),
		RewardCents:        RewardCents,
		QuestionURL:        t.QuestionURL,
		FrameHeight:        t.FrameHeight,
		MaxAssignments:     t.MaxAssignments,
		Lifetime:           t.Lifetime,
		AssignmentDuration: t.AssignmentDuration,
	}
}
