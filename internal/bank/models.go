package bank

import (
	"errors"
	"fmt"
	"time"
)

// ExtraInfoText marks a question entry that only carries supplementary context.
const ExtraInfoText = "extra_info"

var ErrMalformedBank = errors.New("malformed question bank")

// Kind is decided once at load time; nothing downstream re-inspects the payload.
type Kind int

const (
	KindSingleChoice Kind = iota + 1
	KindMultiChoice
	KindNumericOrText
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindSingleChoice:
		return "single_choice"
	case KindMultiChoice:
		return "multi_choice"
	case KindNumericOrText:
		return "numeric_or_text"
	case KindInfo:
		return "info"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for c := KindSingleChoice; c <= KindInfo; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown question kind %q", b)
}

// Label is the short hint shown next to the question.
func (k Kind) Label() string {
	switch k {
	case KindSingleChoice:
		return "Single answer"
	case KindMultiChoice:
		return "Multiple answers"
	case KindNumericOrText:
		return "Text / Numeric answer"
	default:
		return ""
	}
}

type Option struct {
	Text      string `json:"text"`
	ImageRef  string `json:"image_url,omitempty"`
	IsCorrect bool   `json:"is_correct"`
}

type Question struct {
	Number       *int     `json:"number,omitempty"`
	Kind         Kind     `json:"kind"`
	DeclaredType string   `json:"question_type,omitempty"` // as sent; Kind is authoritative
	Text         string   `json:"text,omitempty"`
	ExtraText    string   `json:"extra_text,omitempty"`
	ImageRef     string   `json:"image_url,omitempty"`
	Marks        float64  `json:"marks"`
	Options      []Option `json:"options,omitempty"`

	CorrectAnswerText string   `json:"correct_answer_text,omitempty"`
	RangeStart        *float64 `json:"range_start,omitempty"`
	RangeEnd          *float64 `json:"range_end,omitempty"`

	ForQuestions []int `json:"for_questions,omitempty"` // info entries only
}

func (q Question) IsInfo() bool { return q.Kind == KindInfo }

// CorrectOptions returns the indices of options marked correct, in payload order.
func (q Question) CorrectOptions() []int {
	out := make([]int, 0, 2)
	for i, o := range q.Options {
		if o.IsCorrect {
			out = append(out, i)
		}
	}
	return out
}

// DisplayNumber falls back to the 1-based position when the payload has no number.
func (q Question) DisplayNumber(index int) int {
	if q.Number != nil {
		return *q.Number
	}
	return index + 1
}

type Paper struct {
	Name             string `json:"paper_name,omitempty"`
	Year             string `json:"year,omitempty"`
	Session          string `json:"session,omitempty"`
	TotalTimeMinutes *int   `json:"total_time_minutes,omitempty"`
}

const (
	defaultExamMinutes = 60
	// A handful of published papers carry 4 where 60 was meant.
	legacyBadMinutes = 4
)

// TimeLimit is the exam countdown for this paper. A nil paper gets the default.
func (p *Paper) TimeLimit() time.Duration {
	mins := defaultExamMinutes
	if p != nil && p.TotalTimeMinutes != nil && *p.TotalTimeMinutes > 0 {
		mins = *p.TotalTimeMinutes
	}
	if mins == legacyBadMinutes {
		mins = defaultExamMinutes
	}
	return time.Duration(mins) * time.Minute
}

type Bank struct {
	Paper     *Paper     `json:"paper,omitempty"`
	Questions []Question `json:"questions"`

	TotalDisplayCount int     `json:"total_display_count"`
	TotalMarks        float64 `json:"total_marks"`
	// LastIndex is the non-info question with the largest number; -1 if none.
	LastIndex   int    `json:"last_index"`
	Fingerprint string `json:"fingerprint"`

	LinkIssues []LinkIssue `json:"link_issues,omitempty"`
	links      map[int]int
}

func (b *Bank) Len() int { return len(b.Questions) }

// ScoreableCount is the number of non-info questions.
func (b *Bank) ScoreableCount() int {
	n := 0
	for _, q := range b.Questions {
		if !q.IsInfo() {
			n++
		}
	}
	return n
}

func (b *Bank) ExtraInfoIndex(index int) (int, bool) {
	i, ok := b.links[index]
	return i, ok
}

func (b *Bank) ExtraInfoFor(index int) (Question, bool) {
	i, ok := b.links[index]
	if !ok {
		return Question{}, false
	}
	return b.Questions[i], true
}
