package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-pyq/internal/event"
	"github.com/mind-engage/mindengage-pyq/internal/exam"
	"github.com/mind-engage/mindengage-pyq/internal/metrics"
)

type Recorder struct {
	store    Store
	notifier Notifier
	now      func() time.Time

	pending sync.WaitGroup
}

type Option func(*Recorder)

func WithNotifier(n Notifier) Option      { return func(r *Recorder) { r.notifier = n } }
func WithNow(now func() time.Time) Option { return func(r *Recorder) { r.now = now } }

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Finalize snapshots a finished attempt. Attempts still in progress are
// rejected with ErrAttemptOpen.
func (r *Recorder) Finalize(a *exam.Attempt) (Summary, error) {
	res, ok := a.Result()
	if !ok {
		return Summary{}, ErrAttemptOpen
	}
	return Summary{
		Subject:      a.Subject(),
		QuizType:     a.QuizType(),
		Correct:      res.Correct,
		Wrong:        res.Wrong,
		Total:        res.Total,
		ScorePercent: res.ScorePercent,
		Abandoned:    a.State() == exam.StateAbandoned,
	}, nil
}

// Save finalizes the attempt and hands it to the store and notifier,
// waiting for both. Persistence errors are logged, never returned: the
// summary is already computed and the caller shows it regardless.
func (r *Recorder) Save(ctx context.Context, a *exam.Attempt) (Summary, error) {
	sum, err := r.Finalize(a)
	if err != nil {
		return Summary{}, err
	}
	r.persist(ctx, a, sum)
	return sum, nil
}

// Record is Save without the wait: the summary is returned at once and the
// store and notifier run in the background. Flush waits for them. The write
// outlives ctx cancellation so shutdown can drain it.
func (r *Recorder) Record(ctx context.Context, a *exam.Attempt) (Summary, error) {
	sum, err := r.Finalize(a)
	if err != nil {
		return Summary{}, err
	}
	ctx = context.WithoutCancel(ctx)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		r.persist(ctx, a, sum)
	}()
	return sum, nil
}

// Flush blocks until every background write started by Record is done.
func (r *Recorder) Flush() { r.pending.Wait() }

func (r *Recorder) persist(ctx context.Context, a *exam.Attempt, sum Summary) {
	now := r.now()
	dur := a.Elapsed().Milliseconds()
	rec := Record{
		ID:              a.ID(),
		Learner:         a.Learner(),
		Mode:            string(a.Mode()),
		BankFingerprint: a.Bank().Fingerprint,
		DurationMillis:  dur,
		RecordedAt:      now,
		Summary:         sum,
	}
	entry := TimeEntry{
		Subject:        sum.Subject,
		ActivityType:   ActivityAssessment,
		DurationMillis: dur,
		At:             now,
	}
	metrics.SessionsRecorded.WithLabelValues(outcome(a)).Inc()
	metrics.ScorePercent.Observe(float64(sum.ScorePercent))
	if r.store != nil {
		if err := r.store.Save(ctx, rec, entry); err != nil {
			metrics.SessionStoreErrors.Inc()
			log.Printf("session save %s: %v", rec.ID, err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Publish(event.SessionRecorded, rec); err != nil {
			metrics.SessionStoreErrors.Inc()
			log.Printf("session notify %s: %v", rec.ID, err)
		}
	}
}

func outcome(a *exam.Attempt) string {
	if a.State() == exam.StateAbandoned {
		return metrics.OutcomeAbandoned
	}
	if res, _ := a.Result(); res.Forced {
		return metrics.OutcomeForced
	}
	return metrics.OutcomeSubmitted
}

// Hook adapts Record to exam.WithOnSubmit so countdown-forced submits are
// recorded too. Submit never waits on the store.
func (r *Recorder) Hook(ctx context.Context) func(*exam.Attempt, exam.Result) {
	return func(a *exam.Attempt, _ exam.Result) {
		if _, err := r.Record(ctx, a); err != nil {
			log.Printf("session record %s: %v", a.ID(), err)
		}
	}
}

func (r *Recorder) List(ctx context.Context, f Filter) ([]Record, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.List(ctx, f)
}
