package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeAttemptSubmitted = "AttemptSubmitted"
	TypeAttemptAbandoned = "AttemptAbandoned"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	Learner   string `json:"learner_id,omitempty"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type EventRepo struct {
	siteID string
	now    func() time.Time
}

func NewEventRepo(siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{siteID: siteID, now: time.Now}
}

// Append marshals data and writes one event_log row through x. learner
// owns the row; it may be empty for anonymous attempts.
func (r *EventRepo) Append(ctx context.Context, x Execer, typ, key, learner string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = x.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, learner_id, data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		r.siteID, typ, key, learner, string(b), r.now().Unix())
	return err
}

// SinceOpts narrows Since. An empty Learner reads every row.
type SinceOpts struct {
	After   int64
	Learner string
	Limit   int
}

// Since returns events with seq greater than o.After, oldest first.
func (r *EventRepo) Since(ctx context.Context, db *sql.DB, o SinceOpts) ([]Event, error) {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	q := `SELECT seq, site_id, typ, key, learner_id, data, created_at FROM event_log WHERE seq > $1`
	args := []any{o.After}
	if o.Learner != "" {
		args = append(args, o.Learner)
		q += ` AND learner_id = $2`
	}
	args = append(args, o.Limit)
	q += fmt.Sprintf(` ORDER BY seq LIMIT $%d`, len(args))
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.Learner, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
