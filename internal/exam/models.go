package exam

import (
	"errors"

	"github.com/mind-engage/mindengage-pyq/internal/bank"
	"github.com/mind-engage/mindengage-pyq/internal/grading"
)

var (
	ErrOutOfRange       = errors.New("question index out of range")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrAttemptNotFound  = errors.New("attempt not found")
)

type Mode string

const (
	ModePractice Mode = "practice"
	ModeExam     Mode = "exam"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModePractice, "":
		return ModePractice, true
	case ModeExam:
		return ModeExam, true
	default:
		return "", false
	}
}

type State string

const (
	StateInProgress State = "in_progress"
	StateSubmitted  State = "submitted"
	StateReviewing  State = "reviewing"
	StateAbandoned  State = "abandoned"
)

// Finished reports whether no further answering is possible.
func (s State) Finished() bool { return s != StateInProgress }

// Step is what next()/previous() did.
type Step string

const (
	StepMoved         Step = "moved"
	StepStayed        Step = "stayed"
	StepConfirmSubmit Step = "confirm_submit" // caller should ask, then Submit
)

type QuestionResult struct {
	Index    int             `json:"index"`
	Number   int             `json:"number"`
	Marks    float64         `json:"marks"`
	Awarded  float64         `json:"awarded"`
	Verdict  grading.Verdict `json:"verdict"`
	Answered bool            `json:"answered"`
}

// Result is the frozen outcome of a submitted (or abandoned) attempt.
type Result struct {
	Score        float64 `json:"score"`
	TotalMarks   float64 `json:"total_marks"`
	Percent      float64 `json:"percent"`
	ScorePercent int     `json:"score_percent"`
	Correct      int     `json:"correct"`
	Partial      int     `json:"partial"`
	Wrong        int     `json:"wrong"`
	Total        int     `json:"total"`
	Feedback     string  `json:"feedback"`
	// Forced is set when the countdown, not the learner, submitted.
	Forced    bool             `json:"forced"`
	Questions []QuestionResult `json:"questions"`
}

// View is the read-side projection of the current question.
type View struct {
	Index     int             `json:"index"`
	Number    *int            `json:"number,omitempty"`
	Total     int             `json:"total"`
	KindLabel string          `json:"kind_label,omitempty"`
	Question  bank.Question   `json:"question"`
	Answer    grading.Answer  `json:"answer"`
	Locked    bool            `json:"locked"`
	Reveal    bool            `json:"reveal"`
	Result    *grading.Result `json:"result,omitempty"`
	ExtraInfo *bank.Question  `json:"extra_info,omitempty"`
	IsLast    bool            `json:"is_last"`
	CanGoBack bool            `json:"can_go_back"`
	Progress  *float64        `json:"progress,omitempty"` // nil when the bank has no countable questions
	State     State           `json:"state"`
	Mode      Mode            `json:"mode"`
	Remaining *int            `json:"remaining_seconds,omitempty"`
	Urgency   string          `json:"urgency,omitempty"`
}

func feedbackFor(pct float64) string {
	switch {
	case pct >= 90:
		return "Outstanding!"
	case pct >= 80:
		return "Excellent!"
	case pct >= 70:
		return "Good Job!"
	case pct >= 60:
		return "Above Average"
	case pct >= 50:
		return "Keep Going!"
	case pct >= 40:
		return "Keep Practising"
	default:
		return "Needs More Work"
	}
}

// redact hides answer keys from a question that is not yet revealed.
func redact(q bank.Question) bank.Question {
	q.CorrectAnswerText = ""
	q.RangeStart, q.RangeEnd = nil, nil
	if len(q.Options) > 0 {
		opts := make([]bank.Option, len(q.Options))
		for i, o := range q.Options {
			o.IsCorrect = false
			opts[i] = o
		}
		q.Options = opts
	}
	return q
}
