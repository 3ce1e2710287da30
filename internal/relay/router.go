// Package relay resolves recipients for authenticated frames and
// forwards the original payload to the matching live connections.
package relay

import (
	"galle/internal/model"
	"galle/internal/session"
	"galle/internal/utils/log"

	"go.uber.org/zap"
)

type Router struct {
	store *session.Store
}

func NewRouter(store *session.Store) *Router {
	return &Router{store: store}
}

// Route binds the sender identity if the session has none yet, resolves
// the recipient set, and forwards the frame bytes untouched. It returns
// the resolved sender identity; ok is false when the frame has no
// resolvable identity and was dropped.
//
// Single-recipient policy: the earliest-registered connection bound to
// the target identity wins, and exactly one connection is delivered to.
func (r *Router) Route(connID string, frame *model.Frame) (senderID string, ok bool) {
	senderID = r.store.Bind(connID, frame.Emisor)
	if senderID == "" {
		log.Debug("frame without resolvable sender identity dropped",
			zap.String("conn", connID))
		return "", false
	}

	switch frame.Recipient.Kind {
	case model.RecipientGroup:
		r.fanOut(senderID, frame)
	case model.RecipientSingle:
		r.deliverFirst(frame.Recipient.ID, frame)
	case model.RecipientNone:
		// Nothing to forward; the message still gets persisted.
	}

	return senderID, true
}

// fanOut delivers the frame to every live connection whose identity is
// in the recipient list. The frame's declared emisor is excluded, so a
// group message never echoes back to its own author even when it was
// sent through a connection bound to another identity. Listed
// identities with no live connection are only logged; the sender is
// not told.
func (r *Router) fanOut(senderID string, frame *model.Frame) {
	self := frame.Emisor
	if self == "" {
		self = senderID
	}
	targets := frame.Recipient.Without(self)
	if len(targets) == 0 {
		return
	}

	wanted := make(map[string]bool, len(targets))
	for _, id := range targets {
		wanted[id] = true
	}

	delivered := make(map[string]bool, len(targets))
	r.store.ForEach(func(sess session.Session) {
		if sess.SenderID == "" || !wanted[sess.SenderID] {
			return
		}
		if err := sess.Conn.Send(frame.Raw()); err != nil {
			log.Error("group forward failed",
				zap.String("receptor", sess.SenderID), zap.Error(err))
			return
		}
		delivered[sess.SenderID] = true
	})

	for _, id := range targets {
		if !delivered[id] {
			log.Info("receptor not connected", zap.String("receptor", id))
		}
	}
}

func (r *Router) deliverFirst(receptorID string, frame *model.Frame) {
	matches := r.store.FindByIdentity(receptorID)
	if len(matches) == 0 {
		log.Info("receptor not connected", zap.String("receptor", receptorID))
		return
	}

	if err := matches[0].Conn.Send(frame.Raw()); err != nil {
		log.Error("forward failed", zap.String("receptor", receptorID), zap.Error(err))
	}
}
