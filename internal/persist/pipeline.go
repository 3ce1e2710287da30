// Package persist records routed messages with the external
// persistence endpoint under a bounded retry policy and reports the
// outcome back to the originating connection.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"galle/internal/config"
	"galle/internal/model"
	"galle/internal/session"
	"galle/internal/utils/log"

	"go.uber.org/zap"
)

type (
	Pipeline struct {
		url         string
		client      *http.Client
		maxAttempts int
		retryDelay  time.Duration
	}
)

func NewPipeline(cfg config.PersistConfig) *Pipeline {
	return &Pipeline{
		url:         cfg.URL,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
	}
}

// Record posts the message body to the persistence endpoint, retrying
// on transport failure only. Any returned response, error bodies
// included, ends the attempts. The sender always receives exactly one
// ack: message_saved on a response, message_error after the attempts
// run out. Run this in its own goroutine; the inter-attempt delay must
// never sit on a connection's dispatch path.
func (p *Pipeline) Record(ctx context.Context, sender session.Pusher, frame *model.Frame, token, userID string) {
	body, err := frame.PersistBody()
	if err != nil {
		log.Error("persist body encode failed", zap.Error(err))
		return
	}

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		respBody, err := p.post(ctx, body, token, userID)
		if err == nil {
			ack := model.NewSavedAck(extractMessageID(respBody), time.Now(), body)
			if err := sender.SendJSON(ack); err != nil {
				log.Error("send saved ack failed", zap.Error(err))
			}
			return
		}

		log.Warn("persist attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.maxAttempts),
			zap.Error(err))

		if attempt == p.maxAttempts {
			break
		}

		select {
		case <-time.After(p.retryDelay):
		case <-ctx.Done():
			return
		}
	}

	log.Error("message could not be persisted, attempts exhausted",
		zap.String("emisor", userID))
	if err := sender.SendJSON(model.NewErrorAck(body)); err != nil {
		log.Error("send error ack failed", zap.Error(err))
	}
}

func (p *Pipeline) post(ctx context.Context, body []byte, token, userID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-WP-Token", token)
	req.Header.Set("X-User-ID", userID)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// extractMessageID pulls the id out of the endpoint response when it
// parses as a JSON object carrying one.
func extractMessageID(respBody []byte) string {
	var result struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || len(result.ID) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(result.ID, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(result.ID, &n); err == nil {
		return n.String()
	}

	return ""
}
