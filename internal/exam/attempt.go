package exam

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-pyq/internal/bank"
	"github.com/mind-engage/mindengage-pyq/internal/countdown"
	"github.com/mind-engage/mindengage-pyq/internal/grading"
)

// Attempt is one learner's run through a bank. Every operation takes the
// attempt lock, so the countdown goroutine and callers are serialized.
type Attempt struct {
	mu sync.Mutex

	id       string
	bank     *bank.Bank
	mode     Mode
	subject  string
	quizType string
	learner  string
	grader   grading.Grader
	clock    countdown.Clock
	timer    *countdown.Timer
	onSubmit []func(*Attempt, Result)
	onAlert  func(countdown.Threshold, int)

	state     State
	current   int
	answers   map[int]grading.Answer
	checked   map[int]grading.Result // presence locks the question
	startedAt time.Time
	endedAt   time.Time
	touched   time.Time // last learner interaction
	result    *Result
}

type Option func(*Attempt)

func WithMode(m Mode) Option             { return func(a *Attempt) { a.mode = m } }
func WithID(id string) Option            { return func(a *Attempt) { a.id = id } }
func WithLearner(id string) Option       { return func(a *Attempt) { a.learner = id } }
func WithGrader(g grading.Grader) Option { return func(a *Attempt) { a.grader = g } }
func WithClock(c countdown.Clock) Option { return func(a *Attempt) { a.clock = c } }

func WithSubject(subject, quizType string) Option {
	return func(a *Attempt) { a.subject, a.quizType = subject, quizType }
}

// WithOnSubmit registers a hook that runs once, after the attempt is scored,
// whether the learner or the countdown submitted it.
func WithOnSubmit(fn func(*Attempt, Result)) Option {
	return func(a *Attempt) { a.onSubmit = append(a.onSubmit, fn) }
}

// WithUrgencyHook observes countdown threshold crossings.
func WithUrgencyHook(fn func(th countdown.Threshold, remaining int)) Option {
	return func(a *Attempt) { a.onAlert = fn }
}

func New(b *bank.Bank, opts ...Option) (*Attempt, error) {
	if b == nil || b.Len() == 0 {
		return nil, fmt.Errorf("%w: empty bank", bank.ErrMalformedBank)
	}
	a := &Attempt{
		bank:    b,
		mode:    ModePractice,
		grader:  grading.NewDefaultGrader(),
		clock:   countdown.RealClock,
		state:   StateInProgress,
		answers: map[int]grading.Answer{},
		checked: map[int]grading.Result{},
	}
	for _, o := range opts {
		o(a)
	}
	if a.id == "" {
		a.id = uuid.NewString()
	}
	a.startedAt = a.clock.Now()
	a.touched = a.startedAt
	if a.mode == ModeExam {
		a.timer = countdown.New(b.Paper.TimeLimit(), countdown.Hooks{
			OnThreshold: a.onAlert,
			OnExpire:    a.expire,
		})
	}
	return a, nil
}

// StartTimer begins the exam countdown. It is a no-op in practice mode.
func (a *Attempt) StartTimer(ctx context.Context) {
	if a.timer != nil {
		a.timer.Start(ctx, a.clock)
	}
}

func (a *Attempt) ID() string           { return a.id }
func (a *Attempt) Bank() *bank.Bank     { return a.bank }
func (a *Attempt) Mode() Mode           { return a.mode }
func (a *Attempt) Subject() string      { return a.subject }
func (a *Attempt) QuizType() string     { return a.quizType }
func (a *Attempt) Learner() string      { return a.learner }
func (a *Attempt) StartedAt() time.Time { return a.startedAt }

// Timer is nil outside exam mode.
func (a *Attempt) Timer() *countdown.Timer { return a.timer }

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) CurrentIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// RemainingSeconds is only meaningful in exam mode.
func (a *Attempt) RemainingSeconds() (int, bool) {
	if a.timer == nil {
		return 0, false
	}
	return a.timer.Remaining(), true
}

// LastActive is the later of the last learner interaction and the moment
// the attempt finished.
func (a *Attempt) LastActive() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.endedAt.After(a.touched) {
		return a.endedAt
	}
	return a.touched
}

// Elapsed is wall-clock time from start to submit/abandon (or now).
func (a *Attempt) Elapsed() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	end := a.endedAt
	if end.IsZero() {
		end = a.clock.Now()
	}
	return end.Sub(a.startedAt)
}

func (a *Attempt) GoTo(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touched = a.clock.Now()
	if err := a.checkIndex(index); err != nil {
		return err
	}
	a.current = index
	return nil
}

// RecordAnswer replaces the stored answer. Locked questions and finished
// attempts reject the call with ErrInvalidOperation and keep their state.
func (a *Attempt) RecordAnswer(index int, v grading.Answer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touched = a.clock.Now()
	if err := a.checkIndex(index); err != nil {
		return err
	}
	if a.state.Finished() {
		return fmt.Errorf("%w: attempt is %s", ErrInvalidOperation, a.state)
	}
	if a.bank.Questions[index].IsInfo() {
		return fmt.Errorf("%w: question %d is an info block", ErrInvalidOperation, index)
	}
	if _, locked := a.checked[index]; locked {
		return fmt.Errorf("%w: question %d already checked", ErrInvalidOperation, index)
	}
	if len(v.Selection) > 0 {
		v = grading.MultiChoice(v.Selection...)
	}
	a.answers[index] = v
	return nil
}

// CheckCurrent scores the current question in practice mode and locks it.
func (a *Attempt) CheckCurrent() (grading.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touched = a.clock.Now()
	if a.mode != ModePractice {
		return grading.Result{}, fmt.Errorf("%w: checking is disabled in %s mode", ErrInvalidOperation, a.mode)
	}
	if a.state.Finished() {
		return grading.Result{}, fmt.Errorf("%w: attempt is %s", ErrInvalidOperation, a.state)
	}
	q := a.bank.Questions[a.current]
	if q.IsInfo() {
		return grading.Result{}, fmt.Errorf("%w: question %d is an info block", ErrInvalidOperation, a.current)
	}
	if res, done := a.checked[a.current]; done {
		return res, fmt.Errorf("%w: question %d already checked", ErrInvalidOperation, a.current)
	}
	res := a.grade(q, a.answers[a.current])
	a.checked[a.current] = res
	return res, nil
}

// Next moves forward one entry. On the highest-numbered question, outside
// review, it moves nowhere and asks for submit confirmation instead.
func (a *Attempt) Next() Step {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touched = a.clock.Now()
	if a.current == a.bank.LastIndex && a.state != StateReviewing {
		return StepConfirmSubmit
	}
	if a.current < a.bank.Len()-1 {
		a.current++
		return StepMoved
	}
	return StepStayed
}

func (a *Attempt) Previous() Step {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touched = a.clock.Now()
	if a.current > 0 {
		a.current--
		return StepMoved
	}
	return StepStayed
}

// Submit scores every non-info question and freezes the attempt. Calling it
// again returns the same Result.
func (a *Attempt) Submit() (Result, error) {
	return a.submit(false)
}

func (a *Attempt) expire() {
	if _, err := a.submit(true); err != nil {
		log.Printf("attempt %s: countdown expired: %v", a.id, err)
	}
}

func (a *Attempt) submit(forced bool) (Result, error) {
	a.mu.Lock()
	if a.result != nil && a.state != StateAbandoned {
		res := *a.result
		a.mu.Unlock()
		return res, nil
	}
	if a.state == StateAbandoned {
		a.mu.Unlock()
		return Result{}, fmt.Errorf("%w: attempt was abandoned", ErrInvalidOperation)
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	for i, q := range a.bank.Questions {
		if q.IsInfo() {
			continue
		}
		if _, done := a.checked[i]; !done {
			a.checked[i] = a.grade(q, a.answers[i])
		}
	}
	res := a.tally(false)
	res.Forced = forced
	a.result = &res
	a.state = StateSubmitted
	a.endedAt = a.clock.Now()
	hooks := a.onSubmit
	a.mu.Unlock()

	for _, fn := range hooks {
		fn(a, res)
	}
	return res, nil
}

func (a *Attempt) EnterReview() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touched = a.clock.Now()
	switch a.state {
	case StateSubmitted, StateReviewing:
		a.state = StateReviewing
		return nil
	default:
		return fmt.Errorf("%w: cannot review a %s attempt", ErrInvalidOperation, a.state)
	}
}

// Abandon stops an in-progress attempt without scoring unchecked questions.
// The returned Result only reflects questions checked so far.
func (a *Attempt) Abandon() (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateInProgress {
		return Result{}, fmt.Errorf("%w: attempt is %s", ErrInvalidOperation, a.state)
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	res := a.tally(true)
	a.result = &res
	a.state = StateAbandoned
	a.endedAt = a.clock.Now()
	return res, nil
}

// Result returns the frozen outcome once the attempt is finished.
func (a *Attempt) Result() (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return Result{}, false
	}
	return *a.result, true
}

// Current projects the question under the pointer for display.
func (a *Attempt) Current() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touched = a.clock.Now()

	i := a.current
	q := a.bank.Questions[i]
	checked, isChecked := a.checked[i]
	reveal := a.state == StateReviewing || isChecked

	v := View{
		Index:     i,
		Total:     a.bank.TotalDisplayCount,
		KindLabel: q.Kind.Label(),
		Answer:    a.answers[i],
		Locked:    isChecked || a.state.Finished(),
		Reveal:    reveal,
		IsLast:    i == a.bank.LastIndex && a.state != StateReviewing,
		CanGoBack: i > 0,
		State:     a.state,
		Mode:      a.mode,
	}
	if q.IsInfo() {
		v.Question = q
	} else {
		n := q.DisplayNumber(i)
		v.Number = &n
		if reveal {
			v.Question = q
		} else {
			v.Question = redact(q)
		}
	}
	if isChecked {
		v.Result = &checked
	}
	if info, ok := a.bank.ExtraInfoFor(i); ok {
		v.ExtraInfo = &info
	}
	if a.bank.TotalDisplayCount > 0 {
		pos := i + 1
		if v.Number != nil {
			pos = *v.Number
		}
		p := float64(pos) / float64(a.bank.TotalDisplayCount) * 100
		v.Progress = &p
	}
	if a.timer != nil {
		r := a.timer.Remaining()
		v.Remaining = &r
		v.Urgency = countdown.Level(r)
	}
	return v
}

func (a *Attempt) checkIndex(index int) error {
	if index < 0 || index >= a.bank.Len() {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, index, a.bank.Len())
	}
	return nil
}

func (a *Attempt) grade(q bank.Question, ans grading.Answer) grading.Result {
	res, err := a.grader.Grade(q, ans)
	if err != nil {
		return grading.Result{MaxPoints: q.Marks, Verdict: grading.VerdictWrong}
	}
	return res
}

// tally builds a Result from the checked map. When onlyChecked is set,
// questions that were never checked are left out of the counts.
func (a *Attempt) tally(onlyChecked bool) Result {
	res := Result{TotalMarks: a.bank.TotalMarks}
	for i, q := range a.bank.Questions {
		if q.IsInfo() {
			continue
		}
		res.Total++
		r, done := a.checked[i]
		if !done && onlyChecked {
			continue
		}
		res.Score += r.Awarded
		if r.Awarded == q.Marks {
			res.Correct++
		}
		if r.Awarded == 0 {
			res.Wrong++
		}
		if r.Awarded != q.Marks && r.Awarded != 0 {
			res.Partial++
		}
		res.Questions = append(res.Questions, QuestionResult{
			Index:    i,
			Number:   q.DisplayNumber(i),
			Marks:    q.Marks,
			Awarded:  r.Awarded,
			Verdict:  r.Verdict,
			Answered: !a.answers[i].IsZero(),
		})
	}
	if res.TotalMarks > 0 {
		res.Percent = res.Score / res.TotalMarks * 100
		res.ScorePercent = int(math.Round(res.Percent))
	}
	res.Feedback = feedbackFor(res.Percent)
	return res
}
