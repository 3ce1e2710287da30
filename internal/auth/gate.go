package auth

import (
	"context"

	"galle/internal/model"
	"galle/internal/session"
	"galle/internal/utils/log"

	"go.uber.org/zap"
)

// Gate runs the per-connection authentication state machine. A
// connection starts unauthenticated; each auth frame drives one
// verification round trip, and only a Valid verdict flips the session
// to authenticated. Failures leave the connection eligible to retry.
type Gate struct {
	store    *session.Store
	verifier Verifier
}

func NewGate(store *session.Store, verifier Verifier) *Gate {
	return &Gate{store: store, verifier: verifier}
}

// HandleAuth consumes one inbound auth frame. Frames missing the token
// or the sender identity are dropped without a reply. The verification
// call blocks; callers must invoke this from the connection's own
// dispatch path only, never from a shared one.
func (g *Gate) HandleAuth(ctx context.Context, conn session.Pusher, frame *model.Frame) {
	if frame.Token == "" || frame.Emisor == "" {
		log.Debug("auth frame missing token or emisor, dropped",
			zap.String("conn", conn.ID()))
		return
	}

	verdict := g.verifier.Verify(ctx, frame.Token, frame.Emisor)
	switch verdict {
	case VerdictValid:
		if _, ok := g.store.Authenticate(conn.ID(), frame.Emisor, frame.Token); !ok {
			// The connection closed while the check was in flight.
			log.Debug("auth verdict for a gone connection", zap.String("conn", conn.ID()))
			return
		}
		if err := conn.SendJSON(model.NewAuthSuccess()); err != nil {
			log.Error("send auth success failed", zap.String("conn", conn.ID()), zap.Error(err))
		}
		log.Info("connection authenticated",
			zap.String("conn", conn.ID()),
			zap.String("emisor", frame.Emisor))

	case VerdictInvalid:
		log.Info("invalid token",
			zap.String("conn", conn.ID()),
			zap.String("emisor", frame.Emisor))
		g.reply(conn, model.NewAuthFailed(model.InvalidTokenText))

	case VerdictUnreachable:
		g.reply(conn, model.NewAuthError(model.AuthUnreachableText))

	case VerdictMalformed:
		g.reply(conn, model.NewAuthError(model.AuthMalformedText))
	}
}

// Authorized reports whether the connection may have non-auth frames
// processed.
func (g *Gate) Authorized(connID string) bool {
	return g.store.Authenticated(connID)
}

func (g *Gate) reply(conn session.Pusher, result model.AuthResult) {
	if err := conn.SendJSON(result); err != nil {
		log.Error("send auth result failed", zap.String("conn", conn.ID()), zap.Error(err))
	}
}
