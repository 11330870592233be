package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/flxgame/gamesync/pkg/api/handlers"
	"github.com/flxgame/gamesync/pkg/api/middleware"
	authproviders "github.com/flxgame/gamesync/pkg/auth/providers"
	"github.com/flxgame/gamesync/pkg/log"
	"github.com/flxgame/gamesync/pkg/repositories"
	"github.com/flxgame/gamesync/pkg/sequencer"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AllowOrigin  string
	AuthProvider authproviders.AuthProvider
	Repository   repositories.Repository
	Sequencer    *sequencer.Sequencer
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	authMiddleware := middleware.NewAuthMiddleware(opts.AuthProvider, opts.Repository)

	router := mux.NewRouter()
	router.Use(corsMiddleware(opts.AllowOrigin))
	router.Use(authMiddleware)
	router.HandleFunc("/user", handlers.HandleEnsureUser()).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/gamestate", handlers.HandleGetLatestState(opts.Sequencer)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/gamestate", handlers.HandleApplyPatch(opts.Sequencer)).Methods(http.MethodPost)
	router.HandleFunc("/points", handlers.HandleRecomputePoints(opts.Sequencer)).Methods(http.MethodPost, http.MethodOptions)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

func corsMiddleware(allowOrigin string) mux.MiddlewareFunc {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
