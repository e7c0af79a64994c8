package grading

import (
	"math"
	"strings"

	"github.com/mind-engage/mindengage-pyq/internal/bank"
)

// numericStrategy checks free-text answers in priority order:
//
//	range_start + range_end   inclusive numeric range
//	range_start only          numeric equality with range_start
//	otherwise                 numeric equality with correct_answer_text, or a
//	                          case-insensitive string match when either side
//	                          is not a number
type numericStrategy struct{ tol float64 }

func (s numericStrategy) Grade(q bank.Question, a Answer) Result {
	expected := strings.TrimSpace(q.CorrectAnswerText)
	desc := expected
	if desc == "" {
		desc = "[Empty]"
	}
	res := Result{CorrectDescription: "Correct Answer: " + desc}
	if s.matches(q, strings.TrimSpace(a.Text), expected) {
		res.Awarded = q.Marks
	}
	return res
}

func (s numericStrategy) matches(q bank.Question, given, expected string) bool {
	if given == "" {
		return false
	}
	gv, gOK := parseFloatLoose(given)

	switch {
	case q.RangeStart != nil && q.RangeEnd != nil:
		return gOK && gv >= *q.RangeStart && gv <= *q.RangeEnd
	case q.RangeStart != nil:
		return gOK && math.Abs(gv-*q.RangeStart) < s.tol
	}

	ev, eOK := parseFloatLoose(expected)
	if gOK && eOK {
		return math.Abs(gv-ev) < s.tol
	}
	return textEqual(given, expected)
}
