package bank

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"golang.org/x/crypto/blake2b"
)

// Load parses a decrypted question-bank payload. Both the
// {"papers":[...],"questions":[...]} envelope and a bare question list are
// accepted and produce the same Bank.
func Load(raw []byte) (*Bank, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedBank)
	}

	var (
		list  []rawQuestion
		paper *rawPaper
	)
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBank, err)
		}
	case '{':
		var env struct {
			Papers    []rawPaper      `json:"papers"`
			Questions json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBank, err)
		}
		if len(env.Papers) > 0 {
			paper = &env.Papers[0]
		}
		qs := bytes.TrimSpace(env.Questions)
		if len(qs) == 0 || qs[0] != '[' {
			return nil, fmt.Errorf("%w: questions is not a list", ErrMalformedBank)
		}
		if err := json.Unmarshal(qs, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBank, err)
		}
	default:
		return nil, fmt.Errorf("%w: payload is neither an object nor a list", ErrMalformedBank)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no questions found", ErrMalformedBank)
	}

	b := &Bank{
		Questions:   make([]Question, 0, len(list)),
		Fingerprint: fingerprint(trimmed),
	}
	if paper != nil {
		b.Paper = &Paper{
			Name:             string(paper.Name),
			Year:             string(paper.Year),
			Session:          string(paper.Session),
			TotalTimeMinutes: paper.TotalTimeMinutes.intPtr(),
		}
	}
	for _, rq := range list {
		b.Questions = append(b.Questions, convertQuestion(rq))
	}

	b.TotalDisplayCount = displayCount(b.Questions)
	b.TotalMarks = totalMarks(b.Questions)
	b.LastIndex = lastIndex(b.Questions)
	b.links, b.LinkIssues = Link(b.Questions)
	for _, is := range b.LinkIssues {
		log.Printf("bank %s: %s", b.Fingerprint[:12], is)
	}
	return b, nil
}

// LoadReader is Load over a stream.
func LoadReader(r io.Reader) (*Bank, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bank: %w", err)
	}
	return Load(raw)
}

func convertQuestion(rq rawQuestion) Question {
	q := Question{
		Number:            rq.Number.intPtr(),
		DeclaredType:      rq.Type,
		Text:              string(rq.Text),
		ExtraText:         string(rq.ExtraText),
		ImageRef:          rq.ImageURL,
		CorrectAnswerText: string(rq.CorrectAnswerText),
		RangeStart:        rq.RangeStart.ptr(),
		RangeEnd:          rq.RangeEnd.ptr(),
	}
	if rq.Marks.ok && rq.Marks.v > 0 {
		q.Marks = rq.Marks.v
	}
	for _, o := range rq.Options {
		q.Options = append(q.Options, Option{Text: string(o.Text), ImageRef: o.ImageURL, IsCorrect: bool(o.IsCorrect)})
	}
	q.Kind = deriveKind(q)
	if q.Kind == KindInfo {
		q.ForQuestions = []int(rq.ForQuestions)
		q.Number = nil
	}
	return q
}

func deriveKind(q Question) Kind {
	if q.Text == ExtraInfoText {
		return KindInfo
	}
	switch correct := len(q.CorrectOptions()); {
	case len(q.Options) > 0 && correct == 1:
		return KindSingleChoice
	case len(q.Options) > 0 && correct > 1:
		return KindMultiChoice
	default:
		return KindNumericOrText
	}
}

func displayCount(qs []Question) int {
	max, n := 0, 0
	for _, q := range qs {
		if q.IsInfo() {
			continue
		}
		n++
		if q.Number != nil && *q.Number > max {
			max = *q.Number
		}
	}
	if max > 0 {
		return max
	}
	return n
}

func totalMarks(qs []Question) float64 {
	total := 0.0
	for _, q := range qs {
		if !q.IsInfo() {
			total += q.Marks
		}
	}
	return total
}

// lastIndex is the question with the largest declared number. Unnumbered
// questions only count when nothing is numbered; then the last one wins.
func lastIndex(qs []Question) int {
	numbered, fallback, largest := -1, -1, 0
	for i, q := range qs {
		if q.IsInfo() {
			continue
		}
		fallback = i
		if q.Number != nil && (numbered < 0 || *q.Number > largest) {
			numbered, largest = i, *q.Number
		}
	}
	if numbered >= 0 {
		return numbered
	}
	return fallback
}

func fingerprint(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
