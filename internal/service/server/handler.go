package server

import (
	"context"

	"galle/internal/auth"
	"galle/internal/model"
	"galle/internal/persist"
	"galle/internal/relay"
	"galle/internal/session"
	"galle/internal/utils/log"

	"go.uber.org/zap"
)

// Handler owns the per-frame decision: accept or reject, forward, and
// persist. It is transport-agnostic; the websocket layer feeds it raw
// frame bytes.
type Handler struct {
	store    *session.Store
	gate     *auth.Gate
	router   *relay.Router
	pipeline *persist.Pipeline
}

func NewHandler(store *session.Store, gate *auth.Gate, router *relay.Router, pipeline *persist.Pipeline) *Handler {
	return &Handler{
		store:    store,
		gate:     gate,
		router:   router,
		pipeline: pipeline,
	}
}

// OnOpen registers a session for the connection and prompts it to
// authenticate.
func (h *Handler) OnOpen(conn session.Pusher) {
	h.store.Put(conn)
	log.Info("new connection", zap.String("conn", conn.ID()))

	if err := conn.SendJSON(model.NewAuthPrompt()); err != nil {
		log.Error("send auth prompt failed", zap.String("conn", conn.ID()), zap.Error(err))
	}
}

// OnFrame processes one inbound frame. Unparseable frames are dropped
// and never disturb the connection.
func (h *Handler) OnFrame(ctx context.Context, conn session.Pusher, data []byte) {
	frame, err := model.ParseFrame(data)
	if err != nil {
		log.Debug("unparseable frame dropped", zap.String("conn", conn.ID()), zap.Error(err))
		return
	}

	if frame.IsAuth() {
		h.gate.HandleAuth(ctx, conn, frame)
		return
	}

	sess, ok := h.store.Get(conn.ID())
	if !ok || !sess.Authenticated {
		if err := conn.SendJSON(model.NewNotAuthenticated()); err != nil {
			log.Error("send rejection failed", zap.String("conn", conn.ID()), zap.Error(err))
		}
		return
	}

	if frame.IsPing() {
		if err := conn.SendJSON(model.NewPong()); err != nil {
			log.Error("send pong failed", zap.String("conn", conn.ID()), zap.Error(err))
		}
		return
	}

	if _, ok := h.router.Route(conn.ID(), frame); !ok {
		return
	}

	// The persistence call carries the frame's own emisor; a frame
	// without one is forwarded but not recorded.
	if frame.Emisor == "" {
		log.Debug("frame without emisor not persisted", zap.String("conn", conn.ID()))
		return
	}

	// Detached from the connection's context: retries in flight are
	// allowed to finish after the sender disconnects.
	go h.pipeline.Record(context.WithoutCancel(ctx), conn, frame, sess.AuthToken, frame.Emisor)
}

// OnClose removes the connection's session. In-flight persistence acks
// for this connection become no-ops.
func (h *Handler) OnClose(conn session.Pusher) {
	h.store.Remove(conn.ID())
	log.Info("connection closed", zap.String("conn", conn.ID()))
}
