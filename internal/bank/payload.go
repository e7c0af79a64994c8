package bank

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Wire shapes of the published question-bank JSON. Authors hand-edit these
// files, so numbers and flags show up both as JSON scalars and as strings.

type rawPaper struct {
	Name             flexText   `json:"paper_name"`
	Year             flexText   `json:"year"`
	Session          flexText   `json:"session"`
	TotalTimeMinutes flexNumber `json:"total_time_minutes"`
}

type rawOption struct {
	Text      flexText `json:"text"`
	ImageURL  string   `json:"image_url"`
	IsCorrect flexBool `json:"is_correct"`
}

type rawQuestion struct {
	Number            flexNumber  `json:"question_number"`
	Text              flexText    `json:"question_text"`
	Type              string      `json:"question_type"`
	ImageURL          string      `json:"question_image_url"`
	Marks             flexNumber  `json:"marks"`
	Options           []rawOption `json:"options"`
	CorrectAnswerText flexText    `json:"correct_answer_text"`
	RangeStart        flexNumber  `json:"range_start"`
	RangeEnd          flexNumber  `json:"range_end"`
	ForQuestions      numberList  `json:"for_questions"`
	ExtraText         flexText    `json:"extra_text"`
}

// flexNumber accepts 12, 12.5, "12" and "12.5". null, "" and junk leave it unset.
type flexNumber struct {
	v  float64
	ok bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if v, ok := parseNumber(s); ok {
			n.v, n.ok = v, true
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	n.v, n.ok = v, true
	return nil
}

func (n flexNumber) ptr() *float64 {
	if !n.ok {
		return nil
	}
	v := n.v
	return &v
}

func (n flexNumber) intPtr() *int {
	if !n.ok {
		return nil
	}
	v := int(n.v)
	return &v
}

type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = flexText(s)
		return nil
	}
	// numeric answers are sometimes written without quotes
	*t = flexText(string(b))
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.Trim(strings.ToLower(string(bytes.TrimSpace(b))), `"`) {
	case "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

// numberList reads "3,5", "3", [3,5] and ["3","5"]. Entries that are not
// integers are dropped.
type numberList []int

func (l *numberList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	switch b[0] {
	case '[':
		var items []flexNumber
		if err := json.Unmarshal(b, &items); err != nil {
			return nil
		}
		for _, it := range items {
			if it.ok {
				*l = append(*l, int(it.v))
			}
		}
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = append(*l, splitNumbers(s)...)
	default:
		var n flexNumber
		_ = n.UnmarshalJSON(b)
		if n.ok {
			*l = append(*l, int(n.v))
		}
	}
	return nil
}

func splitNumbers(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
