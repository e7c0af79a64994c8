package session

import (
	"context"
	"errors"
	"time"
)

const ActivityAssessment = "assessment"

var ErrAttemptOpen = errors.New("attempt has not been submitted or abandoned")

// Summary is the persisted outcome of one attempt. Skipped is reserved and
// always 0.
type Summary struct {
	Subject      string `json:"subject"`
	QuizType     string `json:"quiz_type"`
	Correct      int    `json:"correct"`
	Wrong        int    `json:"wrong"`
	Skipped      int    `json:"skipped"`
	Total        int    `json:"total"`
	ScorePercent int    `json:"score_percent"`
	Abandoned    bool   `json:"abandoned"`
}

type TimeEntry struct {
	Subject        string    `json:"subject"`
	ActivityType   string    `json:"activity_type"`
	DurationMillis int64     `json:"duration_ms"`
	At             time.Time `json:"at"`
}

// Record is a Summary plus the bookkeeping stores keep alongside it.
type Record struct {
	ID              string    `json:"id"`
	Learner         string    `json:"learner_id,omitempty"`
	Mode            string    `json:"mode"`
	BankFingerprint string    `json:"bank_fingerprint,omitempty"`
	DurationMillis  int64     `json:"duration_ms"`
	RecordedAt      time.Time `json:"recorded_at"`
	Summary
}

type Filter struct {
	Learner string
	Subject string
	Limit   int
}

func (f Filter) match(r Record) bool {
	if f.Learner != "" && r.Learner != f.Learner {
		return false
	}
	if f.Subject != "" && r.Subject != f.Subject {
		return false
	}
	return true
}

// Store persists finished sessions. Save writes the session and its time
// entry together.
type Store interface {
	Save(ctx context.Context, rec Record, entry TimeEntry) error
	List(ctx context.Context, f Filter) ([]Record, error)
}

// Notifier receives a copy of every saved record.
type Notifier interface {
	Publish(eventType string, payload any) error
}
