package http

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-pyq/internal/bank"
	"github.com/mind-engage/mindengage-pyq/internal/storage"
)

const maxBankBytes = 8 << 20

// MountBanks serves the bank store under /banks.
func MountBanks(r chi.Router, bs storage.BlobStore) {
	// GET /banks -> stored keys
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		keys, err := bs.List()
		if err != nil {
			writeErr(w, err)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		writeJSON(w, map[string]any{"keys": keys})
	})

	// POST /banks/{key...}: validated before it is stored
	r.Post("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBankBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		b, err := bank.Load(raw)
		if err != nil {
			writeErr(w, err)
			return
		}
		key, err = bs.Put(key, bytes.NewReader(raw))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]any{
			"key":                 key,
			"fingerprint":         b.Fingerprint,
			"questions":           b.Len(),
			"total_display_count": b.TotalDisplayCount,
			"total_marks":         b.TotalMarks,
			"link_issues":         b.LinkIssues,
		})
	})

	// GET /banks/{key...} -> raw payload
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.Copy(w, rc)
	})
}

func loadStoredBank(bs storage.BlobStore, key string) (*bank.Bank, error) {
	rc, err := bs.Get(key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return bank.LoadReader(rc)
}
