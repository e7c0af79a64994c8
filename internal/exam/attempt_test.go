package exam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-pyq/internal/bank"
	"github.com/mind-engage/mindengage-pyq/internal/countdown"
	"github.com/mind-engage/mindengage-pyq/internal/grading"
)

const sampleBank = `{
  "papers": [{"paper_name": "GATE CS", "year": "2021", "total_time_minutes": 4}],
  "questions": [
    {"question_number": 1, "question_text": "First", "marks": 2,
     "options": [{"text": "a", "is_correct": true}, {"text": "b"}]},
    {"question_text": "extra_info", "extra_text": "Read this", "for_questions": "2,3"},
    {"question_number": 2, "question_text": "Second", "marks": 2,
     "options": [{"text": "a", "is_correct": true}, {"text": "b"}]},
    {"question_number": 3, "question_text": "Third", "marks": 4,
     "options": [{"text": "a", "is_correct": true}, {"text": "b"}, {"text": "c", "is_correct": true}, {"text": "d"}]}
  ]
}`

func loadSample(t *testing.T) *bank.Bank {
	t.Helper()
	b, err := bank.Load([]byte(sampleBank))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return b
}

func newAttempt(t *testing.T, opts ...Option) *Attempt {
	t.Helper()
	a, err := New(loadSample(t), opts...)
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}
	return a
}

func TestAttempt_SubmitScoresEverything(t *testing.T) {
	a := newAttempt(t)
	must(t, a.RecordAnswer(0, grading.SingleChoice(0)))
	must(t, a.RecordAnswer(2, grading.SingleChoice(1)))
	must(t, a.RecordAnswer(3, grading.MultiChoice(0, 1)))

	res, err := a.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Correct != 1 || res.Wrong != 2 || res.Total != 3 {
		t.Errorf("unexpected counts %+v", res)
	}
	if res.Score != 2 || res.TotalMarks != 8 || res.ScorePercent != 25 {
		t.Errorf("unexpected score %+v", res)
	}
	if res.Feedback != "Needs More Work" {
		t.Errorf("unexpected feedback %q", res.Feedback)
	}
	again, err := a.Submit()
	if err != nil || again.Score != res.Score || again.Correct != res.Correct {
		t.Errorf("second submit must return the same result, got %+v %v", again, err)
	}
	if a.State() != StateSubmitted {
		t.Errorf("expected submitted, got %s", a.State())
	}
}

func TestAttempt_PartialCreditScenario(t *testing.T) {
	b, err := bank.Load([]byte(`[
	  {"question_number": 1, "question_text": "q1", "marks": 2, "options": [{"text": "a", "is_correct": true}, {"text": "b"}]},
	  {"question_number": 2, "question_text": "q2", "marks": 2, "options": [{"text": "a", "is_correct": true}, {"text": "b"}]},
	  {"question_number": 3, "question_text": "q3", "marks": 4, "options": [
	    {"text": "a", "is_correct": true}, {"text": "b"}, {"text": "c", "is_correct": true}, {"text": "d"}]}
	]`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, err := New(b)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	must(t, a.RecordAnswer(0, grading.SingleChoice(0)))
	must(t, a.RecordAnswer(1, grading.SingleChoice(1)))
	must(t, a.RecordAnswer(2, grading.MultiChoice(0, 1)))
	res, _ := a.Submit()
	if res.Correct != 1 || res.Wrong != 2 || res.Partial != 0 {
		t.Errorf("unexpected counts %+v", res)
	}
	if res.ScorePercent != 25 {
		t.Errorf("expected 25%%, got %d", res.ScorePercent)
	}

	a, _ = New(b)
	must(t, a.RecordAnswer(0, grading.SingleChoice(0)))
	must(t, a.RecordAnswer(1, grading.SingleChoice(1)))
	must(t, a.RecordAnswer(2, grading.MultiChoice(0)))
	res, _ = a.Submit()
	if res.Correct != 1 || res.Wrong != 1 || res.Partial != 1 || res.ScorePercent != 50 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestAttempt_CheckLocksQuestion(t *testing.T) {
	a := newAttempt(t)
	must(t, a.RecordAnswer(0, grading.SingleChoice(1)))
	res, err := a.CheckCurrent()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Awarded != 0 || res.CorrectDescription != "Correct Answer: a" {
		t.Errorf("unexpected check result %+v", res)
	}
	if err := a.RecordAnswer(0, grading.SingleChoice(0)); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected locked question to reject answer, got %v", err)
	}
	if _, err := a.CheckCurrent(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("second check should be rejected, got %v", err)
	}
	v := a.Current()
	if !v.Locked || !v.Reveal || v.Result == nil || v.Answer.Selected == nil || *v.Answer.Selected != 1 {
		t.Errorf("view should show locked checked answer: %+v", v)
	}
	// the checked score survives submit, even though the answer is wrong
	final, _ := a.Submit()
	if final.Questions[0].Awarded != 0 {
		t.Errorf("checked result should be reused, got %+v", final.Questions[0])
	}
}

func TestAttempt_CheckDisabledInExam(t *testing.T) {
	a := newAttempt(t, WithMode(ModeExam))
	if _, err := a.CheckCurrent(); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected check to be rejected in exam mode, got %v", err)
	}
	if r, ok := a.RemainingSeconds(); !ok || r != 3600 {
		t.Errorf("4 minute papers should get an hour, got %d %v", r, ok)
	}
}

func TestAttempt_Navigation(t *testing.T) {
	a := newAttempt(t)
	if step := a.Previous(); step != StepStayed {
		t.Errorf("previous at 0: %s", step)
	}
	for i := 1; i <= 3; i++ {
		if step := a.Next(); step != StepMoved {
			t.Fatalf("next to %d: %s", i, step)
		}
	}
	if step := a.Next(); step != StepConfirmSubmit {
		t.Fatalf("expected confirm at last question, got %s", step)
	}
	if a.CurrentIndex() != 3 {
		t.Errorf("confirm must not move, at %d", a.CurrentIndex())
	}
	if err := a.GoTo(4); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected out of range, got %v", err)
	}
	if err := a.GoTo(-1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected out of range, got %v", err)
	}
}

func TestAttempt_NextStopsAtLastNumberNotLastEntry(t *testing.T) {
	b, err := bank.Load([]byte(`[
	  {"question_number": 2, "question_text": "q2", "marks": 1, "correct_answer_text": "x"},
	  {"question_number": 1, "question_text": "q1", "marks": 1, "correct_answer_text": "y"}
	]`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, _ := New(b)
	if step := a.Next(); step != StepConfirmSubmit {
		t.Fatalf("highest-numbered question is first, expected confirm, got %s", step)
	}
	if err := a.EnterReview(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("review before submit should fail, got %v", err)
	}
	a.Submit()
	must(t, a.EnterReview())
	if step := a.Next(); step != StepMoved {
		t.Errorf("review navigation should move past the last number, got %s", step)
	}
	if step := a.Next(); step != StepStayed {
		t.Errorf("expected to stay at the end, got %s", step)
	}
}

func TestAttempt_ViewRedactsUntilRevealed(t *testing.T) {
	a := newAttempt(t)
	must(t, a.GoTo(2))
	v := a.Current()
	if v.Reveal || v.Question.Options[0].IsCorrect {
		t.Fatalf("answer key leaked: %+v", v.Question)
	}
	if v.ExtraInfo == nil || v.ExtraInfo.ExtraText != "Read this" {
		t.Errorf("expected extra info attached, got %+v", v.ExtraInfo)
	}
	if v.Number == nil || *v.Number != 2 || v.Progress == nil {
		t.Fatalf("unexpected numbering %+v", v)
	}
	if got := *v.Progress; got < 66.6 || got > 66.7 {
		t.Errorf("expected progress 2/3, got %v", got)
	}
	if v.KindLabel != "Single answer" {
		t.Errorf("unexpected label %q", v.KindLabel)
	}

	a.Submit()
	must(t, a.EnterReview())
	v = a.Current()
	if !v.Reveal || !v.Question.Options[0].IsCorrect || !v.Locked {
		t.Errorf("review should reveal the key: %+v", v)
	}
}

func TestAttempt_FinishedRejectsAnswers(t *testing.T) {
	a := newAttempt(t)
	a.Submit()
	if err := a.RecordAnswer(0, grading.SingleChoice(0)); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected rejection after submit, got %v", err)
	}
	if err := a.RecordAnswer(1, grading.TextAnswer("x")); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected rejection for info block, got %v", err)
	}
}

func TestAttempt_ReviewIsReadOnlyButNavigable(t *testing.T) {
	a := newAttempt(t)
	must(t, a.RecordAnswer(0, grading.SingleChoice(1)))
	a.Submit()
	must(t, a.EnterReview())
	if a.State() != StateReviewing {
		t.Fatalf("expected reviewing, got %s", a.State())
	}

	if err := a.RecordAnswer(0, grading.SingleChoice(0)); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("answer in review: %v", err)
	}
	if _, err := a.CheckCurrent(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("check in review: %v", err)
	}
	for i := 0; i < a.Bank().Len(); i++ {
		if err := a.GoTo(i); err != nil {
			t.Errorf("goto %d in review: %v", i, err)
		}
	}
	must(t, a.GoTo(0))
	if got := a.Current().Answer; got.Selected == nil || *got.Selected != 1 {
		t.Errorf("stored answer changed in review: %+v", got)
	}
	if err := a.GoTo(a.Bank().Len()); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("goto past the end: %v", err)
	}
}

func TestAttempt_Abandon(t *testing.T) {
	a := newAttempt(t)
	must(t, a.RecordAnswer(0, grading.SingleChoice(0)))
	a.CheckCurrent()
	must(t, a.RecordAnswer(2, grading.SingleChoice(0)))

	res, err := a.Abandon()
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if res.Correct != 1 || res.Wrong != 0 || res.Total != 3 {
		t.Errorf("only checked questions count, got %+v", res)
	}
	if _, err := a.Submit(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("submit after abandon should fail, got %v", err)
	}
	if _, err := a.Abandon(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("double abandon should fail, got %v", err)
	}
}

func TestAttempt_ExpiryForcesSubmit(t *testing.T) {
	clock := countdown.NewManualClock(time.Unix(0, 0))
	submitted := make(chan Result, 2)
	var alerts []countdown.Threshold
	a := newAttempt(t,
		WithMode(ModeExam),
		WithClock(clock),
		WithUrgencyHook(func(th countdown.Threshold, _ int) { alerts = append(alerts, th) }),
		WithOnSubmit(func(_ *Attempt, r Result) { submitted <- r }),
	)
	must(t, a.RecordAnswer(0, grading.SingleChoice(0)))
	a.StartTimer(context.Background())

	clock.Advance(time.Hour)
	var res Result
	select {
	case res = <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatalf("countdown did not submit")
	}
	if !res.Forced || res.Correct != 1 || res.Wrong != 2 {
		t.Errorf("unexpected forced result %+v", res)
	}
	if len(alerts) != 2 {
		t.Errorf("expected warning and danger, got %v", alerts)
	}
	if _, err := a.Submit(); err != nil {
		t.Fatalf("submit after expiry: %v", err)
	}
	select {
	case <-submitted:
		t.Errorf("submit hook must run once")
	default:
	}
	if d := a.Elapsed(); d != time.Hour {
		t.Errorf("expected elapsed 1h, got %v", d)
	}
}

func TestAttempt_ConcurrentSubmitRunsHooksOnce(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	a := newAttempt(t, WithOnSubmit(func(*Attempt, Result) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Submit()
			a.Current()
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Errorf("expected one hook call, got %d", calls)
	}
}

func TestStore(t *testing.T) {
	s := NewInMemoryStore()
	a := newAttempt(t, WithID("fixed"))
	must(t, s.Put(a))
	got, err := s.Get("fixed")
	if err != nil || got != a {
		t.Fatalf("get: %v", err)
	}
	s.Remove("fixed")
	if _, err := s.Get("fixed"); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store")
	}
}

func TestStore_SweepEvictsIdleAttempts(t *testing.T) {
	t0 := time.Unix(0, 0)
	clock := countdown.NewManualClock(t0)
	s := NewInMemoryStore()
	idle := newAttempt(t, WithID("idle"), WithClock(clock))
	busy := newAttempt(t, WithID("busy"), WithClock(clock))
	done := newAttempt(t, WithID("done"), WithClock(clock))
	timed := newAttempt(t, WithID("timed"), WithClock(clock), WithMode(ModeExam))
	for _, a := range []*Attempt{idle, busy, done, timed} {
		must(t, s.Put(a))
	}
	done.Submit()

	clock.Advance(90 * time.Minute)
	must(t, busy.GoTo(2))
	clock.Advance(30 * time.Minute)

	abandoned := s.Sweep(clock.Now().Add(-time.Hour))
	if len(abandoned) != 1 || abandoned[0] != idle {
		t.Fatalf("expected only the idle practice attempt abandoned, got %d", len(abandoned))
	}
	if idle.State() != StateAbandoned {
		t.Errorf("idle attempt state %s", idle.State())
	}
	if s.Len() != 2 {
		t.Errorf("expected busy and timed to remain, got %d", s.Len())
	}
	for _, id := range []string{"idle", "done"} {
		if _, err := s.Get(id); !errors.Is(err, ErrAttemptNotFound) {
			t.Errorf("%s should be evicted: %v", id, err)
		}
	}
	if timed.State() != StateInProgress {
		t.Errorf("running exam must be left to its countdown, got %s", timed.State())
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
