package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-pyq/internal/db"
	syncx "github.com/mind-engage/mindengage-pyq/internal/sync"
)

// SQLStore writes sessions, time entries and an event_log row in one
// transaction. Works on both the sqlite and postgres schemas.
type SQLStore struct {
	DB     *sql.DB
	Events *syncx.EventRepo
}

func NewSQLStore(d *sql.DB, events *syncx.EventRepo) *SQLStore {
	if events == nil {
		events = syncx.NewEventRepo("")
	}
	return &SQLStore{DB: d, Events: events}
}

func (s *SQLStore) Save(ctx context.Context, rec Record, entry TimeEntry) error {
	return db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pyq_sessions (id, learner_id, subject, quiz_type, mode, bank_fingerprint,
			  correct, wrong, skipped, total, score_percent, abandoned, duration_ms, recorded_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			rec.ID, rec.Learner, rec.Subject, rec.QuizType, rec.Mode, rec.BankFingerprint,
			rec.Correct, rec.Wrong, rec.Skipped, rec.Total, rec.ScorePercent, rec.Abandoned,
			rec.DurationMillis, rec.RecordedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO time_entries (learner_id, subject, activity_type, duration_ms, at)
			VALUES ($1,$2,$3,$4,$5)`,
			rec.Learner, entry.Subject, entry.ActivityType, entry.DurationMillis, entry.At.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert time entry: %w", err)
		}
		typ := syncx.TypeAttemptSubmitted
		if rec.Abandoned {
			typ = syncx.TypeAttemptAbandoned
		}
		if err := s.Events.Append(ctx, tx, typ, rec.ID, rec.Learner, rec); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Learner != "" {
		args = append(args, f.Learner)
		where = append(where, fmt.Sprintf("learner_id = $%d", len(args)))
	}
	if f.Subject != "" {
		args = append(args, f.Subject)
		where = append(where, fmt.Sprintf("subject = $%d", len(args)))
	}
	q := `SELECT id, learner_id, subject, quiz_type, mode, bank_fingerprint,
	        correct, wrong, skipped, total, score_percent, abandoned, duration_ms, recorded_at
	      FROM pyq_sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY recorded_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r  Record
			at int64
		)
		if err := rows.Scan(&r.ID, &r.Learner, &r.Subject, &r.QuizType, &r.Mode, &r.BankFingerprint,
			&r.Correct, &r.Wrong, &r.Skipped, &r.Total, &r.ScorePercent, &r.Abandoned,
			&r.DurationMillis, &at); err != nil {
			return nil, err
		}
		r.RecordedAt = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}
