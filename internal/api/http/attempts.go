package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-pyq/internal/auth"
	"github.com/mind-engage/mindengage-pyq/internal/bank"
	"github.com/mind-engage/mindengage-pyq/internal/countdown"
	"github.com/mind-engage/mindengage-pyq/internal/exam"
	"github.com/mind-engage/mindengage-pyq/internal/grading"
	"github.com/mind-engage/mindengage-pyq/internal/metrics"
	"github.com/mind-engage/mindengage-pyq/internal/session"
	"github.com/mind-engage/mindengage-pyq/internal/storage"
)

// AttemptDeps wires the attempt routes. BaseCtx outlives requests: it
// drives exam countdowns and the sessions they submit.
type AttemptDeps struct {
	Store    exam.Store
	Banks    storage.BlobStore
	Recorder *session.Recorder
	Grader   grading.Grader
	Clock    countdown.Clock
	BaseCtx  context.Context
}

// MountAttempts registers /attempts routes.
func MountAttempts(r chi.Router, d AttemptDeps) {
	if d.BaseCtx == nil {
		d.BaseCtx = context.Background()
	}
	r.Post("/", CreateAttemptHandler(d))
	r.Route("/{attemptID}", func(r chi.Router) {
		r.Get("/", GetAttemptHandler(d.Store))
		r.Get("/result", ResultHandler(d.Store, d.Recorder))
		r.Post("/goto", GoToHandler(d.Store))
		r.Post("/next", StepHandler(d.Store, (*exam.Attempt).Next))
		r.Post("/previous", StepHandler(d.Store, (*exam.Attempt).Previous))
		r.Post("/answer", AnswerHandler(d.Store))
		r.Post("/check", CheckHandler(d.Store))
		r.Post("/submit", SubmitHandler(d.Store, d.Recorder))
		r.Post("/review", ReviewHandler(d.Store))
		r.Delete("/", AbandonHandler(d.Store, d.Recorder))
	})
}

type createAttemptReq struct {
	BankKey  string          `json:"bank_key"`
	Bank     json.RawMessage `json:"bank"`
	Mode     string          `json:"mode"`
	Subject  string          `json:"subject"`
	QuizType string          `json:"quiz_type"`
}

// POST /attempts {bank_key | bank, mode, subject, quiz_type}
func CreateAttemptHandler(d AttemptDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAttemptReq
		r.Body = http.MaxBytesReader(w, r.Body, maxBankBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				http.Error(w, "bank too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		mode, ok := exam.ParseMode(req.Mode)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown mode %q", req.Mode), http.StatusBadRequest)
			return
		}

		var (
			b   *bank.Bank
			err error
		)
		switch {
		case len(req.Bank) > 0:
			b, err = bank.Load(req.Bank)
		case req.BankKey != "" && d.Banks != nil:
			b, err = loadStoredBank(d.Banks, req.BankKey)
		default:
			http.Error(w, "bank or bank_key required", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}

		opts := []exam.Option{
			exam.WithMode(mode),
			exam.WithSubject(req.Subject, req.QuizType),
			exam.WithLearner(auth.SubjectFromContext(r.Context())),
		}
		if d.Grader != nil {
			opts = append(opts, exam.WithGrader(d.Grader))
		}
		if d.Clock != nil {
			opts = append(opts, exam.WithClock(d.Clock))
		}
		if d.Recorder != nil {
			opts = append(opts, exam.WithOnSubmit(d.Recorder.Hook(d.BaseCtx)))
		}
		a, err := exam.New(b, opts...)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := d.Store.Put(a); err != nil {
			writeErr(w, err)
			return
		}
		a.StartTimer(d.BaseCtx)
		metrics.AttemptsStarted.WithLabelValues(string(a.Mode())).Inc()

		writeJSONStatus(w, http.StatusCreated, map[string]any{"id": a.ID(), "view": a.Current()})
	}
}

// owned looks the attempt up and rejects callers other than its learner.
func owned(store exam.Store, r *http.Request) (*exam.Attempt, error) {
	a, err := store.Get(chi.URLParam(r, "attemptID"))
	if err != nil {
		return nil, err
	}
	if a.Learner() != "" && a.Learner() != auth.SubjectFromContext(r.Context()) {
		return nil, exam.ErrAttemptNotFound
	}
	return a, nil
}

func GetAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := owned(store, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, a.Current())
	}
}

// POST /attempts/{id}/goto {"index": n}
func GoToHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := owned(store, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req struct {
			Index *int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
			http.Error(w, "index required", http.StatusBadRequest)
			return
		}
		if err := a.GoTo(*req.Index); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, a.Current())
	}
}

// StepHandler serves next/previous.
func StepHandler(store exam.Store, step func(*exam.Attempt) exam.Step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := owned(store, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		s := step(a)
		writeJSON(w, map[string]any{"step": s, "view": a.Current()})
	}
}

// POST /attempts/{id}/answer {"index"?: n, "selected"|"selection"|"text"}
// Without an index the current question is answered.
func AnswerHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := owned(store, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req struct {
			Index *int `json:"index"`
			grading.Answer
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		idx := a.CurrentIndex()
		if req.Index != nil {
			idx = *req.Index
		}
		if err := a.RecordAnswer(idx, req.Answer); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, a.Current())
	}
}

func CheckHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := owned(store, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		res, err := a.CheckCurrent()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"result": res, "view": a.Current()})
	}
}

// POST /attempts/{id}/submit. Repeat calls return the same result.
func SubmitHandler(store exam.Store, rec *session.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := owned(store, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		res, err := a.Submit()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, resultBody(a, res, rec))
	}
}

func ResultHandler(store exam.Store, rec *session.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := owned(store, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		res, ok := a.Result()
		if !ok {
			writeErr(w, session.ErrAttemptOpen)
			return
		}
		writeJSON(w, resultBody(a, res, rec))
	}
}

func ReviewHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := owned(store, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := a.EnterReview(); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, a.Current())
	}
}

// DELETE /attempts/{id}: abandons an in-progress attempt, records it, and
// forgets it. Finished attempts are simply forgotten.
func AbandonHandler(store exam.Store, rec *session.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := owned(store, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		res, err := a.Abandon()
		switch {
		case err == nil:
			body := resultBody(a, res, nil)
			if rec != nil {
				sum, _ := rec.Record(r.Context(), a)
				body["summary"] = sum
			}
			store.Remove(a.ID())
			writeJSON(w, body)
		case errors.Is(err, exam.ErrInvalidOperation):
			store.Remove(a.ID())
			w.WriteHeader(http.StatusNoContent)
		default:
			writeErr(w, err)
		}
	}
}

// SweepAttempts evicts attempts idle for longer than ttl, once per every,
// until ctx is done. Practice attempts abandoned on the way out are recorded.
func SweepAttempts(ctx context.Context, d AttemptDeps, every, ttl time.Duration) {
	clock := d.Clock
	if clock == nil {
		clock = countdown.RealClock
	}
	t := clock.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if n := sweepOnce(ctx, d, clock.Now().Add(-ttl)); n > 0 {
				log.Printf("sweep: abandoned %d idle attempts", n)
			}
		}
	}
}

func sweepOnce(ctx context.Context, d AttemptDeps, cutoff time.Time) int {
	abandoned := d.Store.Sweep(cutoff)
	if d.Recorder != nil {
		for _, a := range abandoned {
			if _, err := d.Recorder.Record(ctx, a); err != nil {
				log.Printf("sweep: record %s: %v", a.ID(), err)
			}
		}
	}
	return len(abandoned)
}

func resultBody(a *exam.Attempt, res exam.Result, rec *session.Recorder) map[string]any {
	body := map[string]any{"id": a.ID(), "state": a.State(), "result": res}
	if rec != nil {
		if sum, err := rec.Finalize(a); err == nil {
			body["summary"] = sum
		}
	}
	return body
}
