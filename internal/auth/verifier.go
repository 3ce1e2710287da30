// Package auth decides, per connection, whether traffic may flow: it
// drives credential verification against the external endpoint and
// gates every non-auth frame on its outcome.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"galle/internal/config"
	"galle/internal/utils/log"

	"go.uber.org/zap"
)

// Verdict is the outcome of a credential check.
type Verdict int

const (
	// VerdictValid is the only verdict that authenticates a session.
	VerdictValid Verdict = iota
	// VerdictInvalid is a well-formed negative answer.
	VerdictInvalid
	// VerdictUnreachable covers transport failure to the endpoint.
	VerdictUnreachable
	// VerdictMalformed covers an unparseable endpoint response.
	VerdictMalformed
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictInvalid:
		return "invalid"
	case VerdictUnreachable:
		return "unreachable"
	case VerdictMalformed:
		return "malformed"
	}
	return "unknown"
}

// Verifier checks a (token, sender) pair against the credential
// authority. The call is synchronous and may block.
type Verifier interface {
	Verify(ctx context.Context, token, userID string) Verdict
}

type (
	HTTPVerifier struct {
		url    string
		client *http.Client
	}

	verifyRequest struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}

	verifyResponse struct {
		Valid bool `json:"valid"`
	}
)

func NewHTTPVerifier(cfg config.AuthConfig) *HTTPVerifier {
	return &HTTPVerifier{
		url:    cfg.VerifyURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token, userID string) Verdict {
	payload, err := json.Marshal(verifyRequest{Token: token, UserID: userID})
	if err != nil {
		return VerdictMalformed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(payload))
	if err != nil {
		return VerdictUnreachable
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		log.Warn("verification endpoint unreachable", zap.Error(err))
		return VerdictUnreachable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("verification response read failed", zap.Error(err))
		return VerdictUnreachable
	}

	var result verifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		log.Warn("verification response is not valid JSON", zap.Error(err))
		return VerdictMalformed
	}

	if result.Valid {
		return VerdictValid
	}
	return VerdictInvalid
}
