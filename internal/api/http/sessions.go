package http

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-pyq/internal/auth"
	"github.com/mind-engage/mindengage-pyq/internal/session"
	syncx "github.com/mind-engage/mindengage-pyq/internal/sync"
)

// GET /sessions?subject=...&limit=50
// Learners only ever see their own history.
func ListSessionsHandler(rec *session.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rec.List(r.Context(), session.Filter{
			Learner: auth.SubjectFromContext(r.Context()),
			Subject: strings.TrimSpace(r.URL.Query().Get("subject")),
			Limit:   parseIntDefault(r.URL.Query().Get("limit"), 50),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []session.Record{}
		}
		writeJSON(w, list)
	}
}

// GET /events?after=<seq>&limit=100 for downstream sync. Scoped to the
// caller like /sessions; only anonymous deployments see every row.
func ListEventsHandler(events *syncx.EventRepo, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		list, err := events.Since(r.Context(), db, syncx.SinceOpts{
			After:   after,
			Learner: auth.SubjectFromContext(r.Context()),
			Limit:   parseIntDefault(r.URL.Query().Get("limit"), 100),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []syncx.Event{}
		}
		writeJSON(w, list)
	}
}
