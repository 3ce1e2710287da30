package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"galle/internal/config"
	"galle/internal/utils/log"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type (
	HttpServer struct {
		cfg      config.ServerConfig
		handler  *Handler
		upgrader websocket.Upgrader
	}
)

func NewHttpServer(cfg config.ServerConfig, handler *Handler) *HttpServer {
	s := &HttpServer{
		cfg:     cfg,
		handler: handler,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Routes builds the HTTP route table.
func (s *HttpServer) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.HandleWS()).Methods(http.MethodGet)
	r.HandleFunc("/health", s.HandleHealth()).Methods(http.MethodGet)
	return r
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *HttpServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("websocket server listening", zap.String("addr", s.cfg.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// HandleWS upgrades the request and runs the connection until it
// drops. Each connection gets its own read loop, so one slow client or
// one blocking verification never stalls the others.
func (s *HttpServer) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		if s.cfg.MaxMessageSize > 0 {
			ws.SetReadLimit(s.cfg.MaxMessageSize)
		}

		c := newConn(uuid.NewString(), ws)
		go c.writePump()

		s.handler.OnOpen(c)
		s.readLoop(r.Context(), c, ws)
	}
}

func (s *HttpServer) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}
}

// readLoop processes frames from one connection in arrival order.
func (s *HttpServer) readLoop(ctx context.Context, c *conn, ws *websocket.Conn) {
	defer func() {
		s.handler.OnClose(c)
		c.close()
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Debug("websocket read error", zap.String("conn", c.ID()), zap.Error(err))
			}
			return
		}

		s.handler.OnFrame(ctx, c, data)
	}
}

// checkOrigin allows every origin when none are configured, matching
// the open posture of the original deployment.
func (s *HttpServer) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}

	for _, allowed := range s.cfg.AllowedOrigins {
		if candidate, ok := normalizeOrigin(allowed); ok && candidate == normalized {
			return true
		}
	}

	log.Warn("websocket origin rejected", zap.String("origin", origin))
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
