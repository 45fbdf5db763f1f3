// Package server exposes sessions over HTTP: the WebSocket route, a health
// probe and the bundled browser client.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/room4-2/livedesk/config"
	"github.com/room4-2/livedesk/messages"
	"github.com/room4-2/livedesk/session"
)

//go:embed static
var staticFiles embed.FS

type Server struct {
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	config         *config.Config
	logger         *zap.Logger

	// parent of every served session; cancelled on Shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServerWebsocket(cfg *config.Config, sessionManager *session.Manager, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		sessionManager: sessionManager,
		config:         cfg,
		logger:         logger.Named("server"),
		ctx:            ctx,
		cancel:         cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    64 * 1024, // 64KB for audio chunks
			WriteBufferSize:   64 * 1024,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /ws/{session_id}", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /", http.FileServerFS(static))
	return mux
}

// Start begins listening for connections
func (s *Server) Start() error {
	s.logger.Info("websocket server starting",
		zap.Int("port", s.config.Port),
		zap.String("endpoint", fmt.Sprintf("ws://localhost:%d/ws/{session_id}", s.config.Port)))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.cancel()
	s.sessionManager.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	requestedID := r.PathValue("session_id")
	audio, _ := strconv.ParseBool(r.URL.Query().Get("is_audio"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	transport := session.NewWSTransport(conn, s.config.KeepAlivePeriod, s.logger)

	clientSession, err := s.sessionManager.CreateSession(r.Context(), requestedID, audio, transport)
	if err != nil {
		s.logger.Error("failed to create session", zap.String("requested", requestedID), zap.Error(err))
		_ = transport.WriteFrame(r.Context(), messages.NewSystemFrame("Failed to create session: %v", err))
		_ = transport.Close()
		return
	}

	s.logger.Info("client connected",
		zap.String("session", clientSession.ID),
		zap.Bool("audio", audio),
		zap.String("remote", r.RemoteAddr))

	if err := s.sessionManager.Serve(s.ctx, clientSession); err != nil {
		s.logger.Warn("session ended with error", zap.String("session", clientSession.ID), zap.Error(err))
	}
	s.logger.Info("client disconnected", zap.String("session", clientSession.ID))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body, err := sonic.Marshal(map[string]any{
		"status":   "ok",
		"sessions": s.sessionManager.GetActiveSessionCount(),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
