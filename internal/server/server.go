// Package server exposes the HTTP surface: the Nordit webhook, operator
// backfill triggers, and the fortune/mint endpoints.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"fortunebridge/internal/chain"
	"fortunebridge/internal/fortune"
	"fortunebridge/internal/ingest"
	"fortunebridge/internal/store"
	"fortunebridge/internal/webhook"
)

// Server wires the HTTP layer to the service components.
type Server struct {
	addr     string
	registry *chain.Registry
	consult  *ingest.Engine
	minting  *ingest.Engine
	events   store.EventStore
	fortunes *fortune.Service
	webhooks *webhook.Service
	logger   *zap.Logger
}

func New(
	addr string,
	registry *chain.Registry,
	consult, minting *ingest.Engine,
	events store.EventStore,
	fortunes *fortune.Service,
	webhooks *webhook.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:     addr,
		registry: registry,
		consult:  consult,
		minting:  minting,
		events:   events,
		fortunes: fortunes,
		webhooks: webhooks,
		logger:   logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/webhook/nordit/{chain}", s.handleNorditWebhook)

	r.Route("/blockchain", func(r chi.Router) {
		r.Post("/query-consult-events", s.handleQueryEvents(s.consult, "ConsultPaid"))
		r.Post("/query-minting-events", s.handleQueryEvents(s.minting, "MintingPaid"))
		r.Get("/check-consult", s.handleCheckEvents("fortunes"))
		r.Get("/check-minting", s.handleCheckEvents("nfts"))
		r.Get("/chains", s.handleChains)
		r.Get("/receipt/{network}", s.handleReceipt)
	})

	r.Route("/fortune", func(r chi.Router) {
		r.Post("/tell", s.handleTell)
		r.Get("/consult/{id}", s.handleGetConsult)
		r.Post("/mint-nft", s.handleMintNFT)
	})

	return r
}

// Run serves HTTP until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
