package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticValidator map[string]string

func (v staticValidator) ValidateJWT(token string) (string, error) {
	userID, ok := v[token]
	if !ok {
		return "", errors.New("bad token")
	}
	return userID, nil
}

func TestAuthMiddleware(t *testing.T) {
	validator := staticValidator{"good": "user-1"}
	var seen string
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Basic good", http.StatusUnauthorized},
		{"Bearer", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.want, rec.Code)
		}
		if tc.want == http.StatusOK && seen != "user-1" {
			t.Fatalf("expected user-1 in context, got %q", seen)
		}
	}
}

func TestValidateWebSocketToken(t *testing.T) {
	validator := staticValidator{"good": "user-1"}

	if _, err := ValidateWebSocketToken("", validator); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected token required, got %v", err)
	}
	if userID, err := ValidateWebSocketToken("good", validator); err != nil || userID != "user-1" {
		t.Fatalf("expected user-1, got %q %v", userID, err)
	}
}
