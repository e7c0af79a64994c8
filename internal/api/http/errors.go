package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-pyq/internal/bank"
	"github.com/mind-engage/mindengage-pyq/internal/exam"
	"github.com/mind-engage/mindengage-pyq/internal/session"
	"github.com/mind-engage/mindengage-pyq/internal/storage"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, exam.ErrAttemptNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrInvalidOperation), errors.Is(err, session.ErrAttemptOpen):
		return http.StatusConflict
	case errors.Is(err, bank.ErrMalformedBank):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exam.ErrOutOfRange), errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
