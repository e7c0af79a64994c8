package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret", "pyq-test")
	var seen string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
	}))

	good, err := a.IssueJWT("learner-7", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	expired, _ := a.IssueJWT("learner-7", -time.Minute)
	foreign, _ := NewAuthService("other", "pyq-test").IssueJWT("learner-7", time.Hour)
	wrongIss, _ := NewAuthService("secret", "elsewhere").IssueJWT("learner-7", time.Hour)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + good, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + foreign, http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + wrongIss, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("status %d, want %d", rr.Code, tc.want)
			}
			if tc.want == http.StatusOK && seen != "learner-7" {
				t.Errorf("subject not propagated: %q", seen)
			}
		})
	}
}

func TestParse_ErrBadToken(t *testing.T) {
	if _, err := NewAuthService("s", "").Parse("garbage"); !errors.Is(err, ErrBadToken) {
		t.Fatalf("expected ErrBadToken, got %v", err)
	}
}
