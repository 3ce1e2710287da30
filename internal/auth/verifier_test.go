package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"galle/internal/auth"
	"galle/internal/config"
)

func newVerifier(url string) *auth.HTTPVerifier {
	return auth.NewHTTPVerifier(config.AuthConfig{VerifyURL: url, Timeout: 2 * time.Second})
}

func TestVerifyValid(t *testing.T) {
	var gotToken, gotUserID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		gotToken = req["token"]
		gotUserID = req["user_id"]
		w.Write([]byte(`{"valid":true}`))
	}))
	defer ts.Close()

	verdict := newVerifier(ts.URL).Verify(context.Background(), "tok", "7")
	if verdict != auth.VerdictValid {
		t.Fatalf("verdict = %v, want valid", verdict)
	}
	if gotToken != "tok" || gotUserID != "7" {
		t.Fatalf("endpoint saw token=%q user_id=%q", gotToken, gotUserID)
	}
}

func TestVerifyInvalid(t *testing.T) {
	for name, response := range map[string]string{
		"explicit false": `{"valid":false}`,
		"missing field":  `{"ok":true}`,
	} {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(response))
			}))
			defer ts.Close()

			if verdict := newVerifier(ts.URL).Verify(context.Background(), "tok", "7"); verdict != auth.VerdictInvalid {
				t.Fatalf("verdict = %v, want invalid", verdict)
			}
		})
	}
}

func TestVerifyMalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	if verdict := newVerifier(ts.URL).Verify(context.Background(), "tok", "7"); verdict != auth.VerdictMalformed {
		t.Fatalf("verdict = %v, want malformed", verdict)
	}
}

func TestVerifyUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	ts.Close()

	if verdict := newVerifier(ts.URL).Verify(context.Background(), "tok", "7"); verdict != auth.VerdictUnreachable {
		t.Fatalf("verdict = %v, want unreachable", verdict)
	}
}
