package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"dmchat/internal/authcache"
	"dmchat/internal/realtime"
	"dmchat/internal/token"
)

// Server defines fields used in HTTP processing
type Server struct {
	logger     *zap.SugaredLogger
	httpServer *http.Server
	h          handler
}

// NewServer wires the middleware pipeline and handlers around the provided
// store and returns a Server ready to Start
func NewServer(logger *zap.SugaredLogger, cfg EnvConfig, store Store, opts ...Option) (*Server, error) {
	registry := realtime.NewRegistry(logger)

	srv := &Server{
		logger: logger,
		h: handler{
			logger:     logger,
			store:      store,
			cache:      authcache.New(cfg.CacheTTL),
			tokens:     token.NewManager(cfg.TokenSecret, cfg.TokenTTL),
			registry:   registry,
			dispatcher: realtime.NewDispatcher(logger, registry),
			validate:   validator.New(),
		},
	}

	httpServer := &http.Server{
		Addr:    cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10),
		Handler: logRequests(srv.routes(), logger.Desugar()),
	}

	for _, opt := range opts {
		opt.apply(httpServer)
	}

	srv.httpServer = httpServer

	return srv, nil
}

// routes builds the request pipeline: AuthGate before every protected
// endpoint, JSON enforcement and body validation before write handlers
func (s *Server) routes() http.Handler {
	h := &s.h

	mux := http.NewServeMux()
	mux.Handle("POST /auth/register",
		enforceJSON(validated[registerRequest](h.validate, http.HandlerFunc(h.register))))
	mux.Handle("POST /auth/login",
		enforceJSON(http.HandlerFunc(h.login)))
	mux.Handle("POST /chat/create-chat/{friendID}",
		h.requireAuth(http.HandlerFunc(h.createChat)))
	mux.Handle("POST /chat/send-message/{chatID}",
		h.requireAuth(enforceJSON(validated[newMessageRequest](h.validate, http.HandlerFunc(h.sendMessage)))))
	mux.Handle("GET /chat/retrieve-chats-list",
		h.requireAuth(http.HandlerFunc(h.chatsList)))
	mux.Handle("GET /chat/retrieve-chat-messages/{chatID}",
		h.requireAuth(http.HandlerFunc(h.chatMessages)))
	mux.Handle("GET /chat/search-for-usernames/{username}",
		h.requireAuth(http.HandlerFunc(h.searchUsernames)))
	mux.Handle("GET /ws",
		h.requireAuth(http.HandlerFunc(h.serveWS)))
	mux.Handle("GET /health", http.HandlerFunc(h.health))

	return mux
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	s.logger.Info("Closing realtime connections")
	s.h.registry.CloseAll()

	s.logger.Info("Closing store")
	s.h.store.Close()
	s.logger.Info("Store is closed")

	return nil
}
