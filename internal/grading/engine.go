package grading

import (
	"errors"
	"strings"

	"github.com/mind-engage/mindengage-pyq/internal/bank"
)

var ErrUnscoreable = errors.New("question is not scoreable")

// Answer is what the learner recorded for one question. Exactly one field is
// meaningful, depending on the question kind; the zero value is "unanswered".
type Answer struct {
	Selected  *int   `json:"selected,omitempty"`  // single choice
	Selection []int  `json:"selection,omitempty"` // multi choice, set semantics
	Text      string `json:"text,omitempty"`      // numeric / text
}

func SingleChoice(i int) Answer         { return Answer{Selected: &i} }
func MultiChoice(indices ...int) Answer { return Answer{Selection: dedupe(indices)} }
func TextAnswer(s string) Answer        { return Answer{Text: s} }

func (a Answer) IsZero() bool {
	return a.Selected == nil && len(a.Selection) == 0 && strings.TrimSpace(a.Text) == ""
}

type Verdict string

const (
	VerdictCorrect Verdict = "correct"
	VerdictPartial Verdict = "partial"
	VerdictWrong   Verdict = "wrong"
)

// Result is the outcome of scoring a single question.
type Result struct {
	Awarded            float64 `json:"awarded"`
	MaxPoints          float64 `json:"max_points"`
	CorrectDescription string  `json:"correct_description"`
	Verdict            Verdict `json:"verdict"`
}

// Strategy scores one question kind. Strategies are pure and never fail:
// malformed learner input simply earns nothing.
type Strategy interface {
	Grade(q bank.Question, a Answer) Result
}

// Grader routes by question kind to the correct Strategy.
type Grader interface {
	Grade(q bank.Question, a Answer) (Result, error)
}

type defaultGrader struct {
	strategies map[bank.Kind]Strategy
}

func (g *defaultGrader) Grade(q bank.Question, a Answer) (Result, error) {
	s, ok := g.strategies[q.Kind]
	if !ok {
		return Result{}, ErrUnscoreable
	}
	res := s.Grade(q, a)
	if res.Awarded < 0 {
		res.Awarded = 0
	}
	res.MaxPoints = q.Marks
	res.Verdict = verdictFor(res.Awarded, q.Marks)
	return res, nil
}

// Engine options

type Option func(*config)

type config struct {
	Tolerance         float64 // absolute, for numeric equality
	AllowPartialMulti bool    // per-option credit on multi choice
}

func WithTolerance(tol float64) Option { return func(c *config) { c.Tolerance = tol } }
func WithPartialMulti(b bool) Option   { return func(c *config) { c.AllowPartialMulti = b } }

const DefaultTolerance = 1e-5

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		Tolerance:         DefaultTolerance,
		AllowPartialMulti: true,
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[bank.Kind]Strategy{
			bank.KindSingleChoice:  singleChoiceStrategy{},
			bank.KindMultiChoice:   multiChoiceStrategy{allowPartial: cfg.AllowPartialMulti},
			bank.KindNumericOrText: numericStrategy{tol: cfg.Tolerance},
		},
	}
}

var std = NewDefaultGrader()

// Score grades with the default grader. Info entries score a zero Result.
func Score(q bank.Question, a Answer) Result {
	res, err := std.Grade(q, a)
	if err != nil {
		return Result{}
	}
	return res
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(q bank.Question, a Answer) Result {
	correct := q.CorrectOptions()
	res := Result{CorrectDescription: describeOptions(q, correct)}
	if a.Selected != nil && len(correct) == 1 && *a.Selected == correct[0] {
		res.Awarded = q.Marks
	}
	return res
}

type multiChoiceStrategy struct{ allowPartial bool }

func (s multiChoiceStrategy) Grade(q bank.Question, a Answer) Result {
	correctIdx := q.CorrectOptions()
	res := Result{CorrectDescription: describeOptions(q, correctIdx)}

	selected := toSet(a.Selection)
	if len(selected) == 0 || len(correctIdx) == 0 {
		return res
	}
	correct := toSet(correctIdx)
	if setEqual(correct, selected) {
		// exact match is full credit, whatever the division below rounds to
		res.Awarded = q.Marks
		return res
	}
	if !s.allowPartial {
		return res
	}

	perOption := q.Marks / float64(len(correct))
	hits := 0
	for k := range selected {
		if _, ok := correct[k]; ok {
			hits++
		}
	}
	score := perOption * float64(hits)
	if wrong := len(selected) - hits; wrong > 0 {
		score -= perOption * float64(wrong)
	}
	if score < 0 {
		score = 0
	}
	res.Awarded = score
	return res
}

// helpers

func verdictFor(awarded, max float64) Verdict {
	switch {
	case awarded == max:
		return VerdictCorrect
	case awarded > 0:
		return VerdictPartial
	default:
		return VerdictWrong
	}
}

func describeOptions(q bank.Question, idx []int) string {
	texts := make([]string, 0, len(idx))
	for _, i := range idx {
		texts = append(texts, q.Options[i].Text)
	}
	if len(idx) > 1 {
		return "Correct Answers: " + strings.Join(texts, ", ")
	}
	return "Correct Answer: " + strings.Join(texts, ", ")
}

func toSet(arr []int) map[int]struct{} {
	m := make(map[int]struct{}, len(arr))
	for _, v := range arr {
		m[v] = struct{}{}
	}
	return m
}

func setEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func dedupe(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
