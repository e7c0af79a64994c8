package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mind-engage/mindengage-pyq/internal/bank"
	"github.com/mind-engage/mindengage-pyq/internal/countdown"
	"github.com/mind-engage/mindengage-pyq/internal/event"
	"github.com/mind-engage/mindengage-pyq/internal/exam"
	"github.com/mind-engage/mindengage-pyq/internal/grading"
	"github.com/mind-engage/mindengage-pyq/internal/metrics"
)

const twoQuestions = `[
  {"question_number": 1, "question_text": "q1", "marks": 2, "options": [{"text": "a", "is_correct": true}, {"text": "b"}]},
  {"question_number": 2, "question_text": "q2", "marks": 2, "options": [{"text": "a", "is_correct": true}, {"text": "b"}]}
]`

type failingStore struct{ calls int }

func (f *failingStore) Save(context.Context, Record, TimeEntry) error {
	f.calls++
	return errors.New("disk full")
}
func (f *failingStore) List(context.Context, Filter) ([]Record, error) { return nil, nil }

// blockingStore holds every Save until release is closed.
type blockingStore struct {
	*MemoryStore
	release chan struct{}
}

func (b *blockingStore) Save(ctx context.Context, r Record, e TimeEntry) error {
	<-b.release
	return b.MemoryStore.Save(ctx, r, e)
}

type fakeNotifier struct {
	types    []string
	payloads []any
}

func (f *fakeNotifier) Publish(t string, p any) error {
	f.types = append(f.types, t)
	f.payloads = append(f.payloads, p)
	return nil
}

func newAttempt(t *testing.T, clock countdown.Clock, opts ...exam.Option) *exam.Attempt {
	t.Helper()
	b, err := bank.Load([]byte(twoQuestions))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	opts = append([]exam.Option{exam.WithSubject("Operating Systems", "pyq"), exam.WithClock(clock), exam.WithLearner("u1")}, opts...)
	a, err := exam.New(b, opts...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return a
}

func TestFinalize_RejectsOpenAttempt(t *testing.T) {
	a := newAttempt(t, countdown.NewManualClock(time.Unix(0, 0)))
	if _, err := NewRecorder(nil).Finalize(a); !errors.Is(err, ErrAttemptOpen) {
		t.Fatalf("expected ErrAttemptOpen, got %v", err)
	}
}

func TestSave_PersistsSummaryAndTime(t *testing.T) {
	clock := countdown.NewManualClock(time.Unix(1000, 0))
	a := newAttempt(t, clock)
	if err := a.RecordAnswer(0, grading.SingleChoice(0)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(90 * time.Second)
	if _, err := a.Submit(); err != nil {
		t.Fatal(err)
	}

	store := NewMemoryStore()
	notes := &fakeNotifier{}
	rec := NewRecorder(store, WithNotifier(notes), WithNow(clock.Now))
	sum, err := rec.Save(context.Background(), a)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	want := Summary{Subject: "Operating Systems", QuizType: "pyq", Correct: 1, Wrong: 1, Total: 2, ScorePercent: 50}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}

	list, _ := store.List(context.Background(), Filter{Subject: "Operating Systems"})
	if len(list) != 1 || list[0].Learner != "u1" || list[0].DurationMillis != 90000 {
		t.Fatalf("unexpected records %+v", list)
	}
	entries := store.TimeEntries()
	if len(entries) != 1 || entries[0].ActivityType != ActivityAssessment || entries[0].DurationMillis != 90000 {
		t.Errorf("unexpected time entries %+v", entries)
	}
	if len(notes.types) != 1 || notes.types[0] != event.SessionRecorded {
		t.Errorf("expected one notification, got %v", notes.types)
	}
}

func TestSave_SwallowsStoreErrors(t *testing.T) {
	a := newAttempt(t, countdown.NewManualClock(time.Unix(0, 0)))
	a.Submit()
	fs := &failingStore{}
	before := testutil.ToFloat64(metrics.SessionStoreErrors)
	sum, err := NewRecorder(fs).Save(context.Background(), a)
	if err != nil {
		t.Fatalf("store failure must not surface: %v", err)
	}
	if fs.calls != 1 || sum.Total != 2 {
		t.Errorf("unexpected calls=%d summary=%+v", fs.calls, sum)
	}
	if got := testutil.ToFloat64(metrics.SessionStoreErrors) - before; got != 1 {
		t.Errorf("store errors counted %v, want 1", got)
	}
}

func TestSave_Abandoned(t *testing.T) {
	a := newAttempt(t, countdown.NewManualClock(time.Unix(0, 0)))
	a.Abandon()
	store := NewMemoryStore()
	abandoned := metrics.SessionsRecorded.WithLabelValues(metrics.OutcomeAbandoned)
	before := testutil.ToFloat64(abandoned)
	sum, err := NewRecorder(store).Save(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Abandoned || sum.Correct != 0 || sum.Wrong != 0 || sum.Skipped != 0 {
		t.Errorf("unexpected abandoned summary %+v", sum)
	}
	if got := testutil.ToFloat64(abandoned) - before; got != 1 {
		t.Errorf("abandoned sessions counted %v, want 1", got)
	}
}

func TestHook_RecordsForcedSubmit(t *testing.T) {
	clock := countdown.NewManualClock(time.Unix(0, 0))
	store := NewMemoryStore()
	rec := NewRecorder(store)
	done := make(chan struct{})
	a := newAttempt(t, clock,
		exam.WithMode(exam.ModeExam),
		exam.WithOnSubmit(rec.Hook(context.Background())),
		exam.WithOnSubmit(func(*exam.Attempt, exam.Result) { close(done) }),
	)
	forced := metrics.SessionsRecorded.WithLabelValues(metrics.OutcomeForced)
	before := testutil.ToFloat64(forced)
	a.StartTimer(context.Background())
	clock.Advance(time.Hour)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not submit")
	}
	rec.Flush()
	list, _ := store.List(context.Background(), Filter{})
	if len(list) != 1 || list[0].Mode != "exam" || list[0].DurationMillis != 3600000 {
		t.Fatalf("unexpected records %+v", list)
	}
	if got := testutil.ToFloat64(forced) - before; got != 1 {
		t.Errorf("forced sessions counted %v, want 1", got)
	}
}

func TestMemoryStore_ListFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Unix(0, 0)
	for i, subj := range []string{"DBMS", "OS", "DBMS"} {
		s.Save(ctx, Record{ID: string(rune('a' + i)), RecordedAt: base.Add(time.Duration(i) * time.Minute), Summary: Summary{Subject: subj}}, TimeEntry{})
	}
	got, _ := s.List(ctx, Filter{Subject: "DBMS"})
	if len(got) != 2 || got[0].ID != "c" {
		t.Fatalf("expected newest DBMS first, got %+v", got)
	}
	got, _ = s.List(ctx, Filter{Limit: 1})
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("limit not applied: %+v", got)
	}
}

func TestHook_SubmitDoesNotWaitForStore(t *testing.T) {
	store := &blockingStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	rec := NewRecorder(store)
	a := newAttempt(t, countdown.NewManualClock(time.Unix(0, 0)),
		exam.WithOnSubmit(rec.Hook(context.Background())))

	submitted := make(chan exam.Result, 1)
	go func() {
		res, _ := a.Submit()
		submitted <- res
	}()
	select {
	case res := <-submitted:
		if res.Total != 2 {
			t.Errorf("unexpected result %+v", res)
		}
	case <-time.After(time.Second):
		close(store.release)
		t.Fatal("submit blocked on the session store")
	}

	if list, _ := store.List(context.Background(), Filter{}); len(list) != 0 {
		t.Fatalf("store should still be blocked, got %+v", list)
	}
	close(store.release)
	rec.Flush()
	if list, _ := store.List(context.Background(), Filter{}); len(list) != 1 {
		t.Errorf("expected the session after flush, got %+v", list)
	}
}
