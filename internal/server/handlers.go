package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fortunebridge/internal/fortune"
	"fortunebridge/internal/ingest"
	"fortunebridge/internal/model"
	"fortunebridge/internal/store"
)

func (s *Server) handleNorditWebhook(w http.ResponseWriter, r *http.Request) {
	chainKey := chi.URLParam(r, "chain")

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	resp, err := s.webhooks.Process(r.Context(), chainKey, raw)
	if err != nil {
		s.logger.Error("webhook processing failed",
			zap.String("chain", chainKey), zap.Error(err))
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Error processing webhook: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type queryEventsRequest struct {
	FromBlock uint64 `json:"fromBlock"`
	ToBlock   uint64 `json:"toBlock,omitempty"`
}

// handleQueryEvents triggers an operator backfill. The response acknowledges
// that the backfill was issued, not that it completed.
func (s *Server) handleQueryEvents(engine *ingest.Engine, eventName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryEventsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s.logger.Info("historic events query triggered",
			zap.String("event", eventName),
			zap.Uint64("from", req.FromBlock),
			zap.Uint64("to", req.ToBlock))

		go engine.Backfill(context.Background(), req.FromBlock, req.ToBlock)

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("Historic %s events query triggered successfully", eventName),
		})
	}
}

func (s *Server) handleCheckEvents(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := model.EventQuery{
			WalletAddress: r.URL.Query().Get("walletAddress"),
			TxHash:        r.URL.Query().Get("txHash"),
		}
		if raw := r.URL.Query().Get("blockNumber"); raw != "" {
			block, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid blockNumber")
				return
			}
			q.BlockNumber = block
		}
		if q.WalletAddress == "" && q.TxHash == "" && q.BlockNumber == 0 {
			writeError(w, http.StatusBadRequest,
				"at least one parameter (blockNumber, txHash or walletAddress) is required")
			return
		}

		events, err := s.events.FindEvents(r.Context(), collection, q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "event lookup failed")
			return
		}
		if len(events) == 0 {
			writeError(w, http.StatusNotFound, "no events found for the given criteria")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"count":   len(events),
			"data":    events,
		})
	}
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	type chainInfo struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		ChainID uint64 `json:"chainId"`
	}

	chains := make([]chainInfo, 0)
	for _, key := range s.registry.Networks() {
		entry, err := s.registry.Get(key)
		if err != nil {
			continue
		}
		chains = append(chains, chainInfo{
			ID:      key,
			Name:    entry.Config.Name,
			ChainID: entry.Config.ChainID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chains": chains})
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	network := chi.URLParam(r, "network")

	id, err := s.registry.CurrentReceiptID(r.Context(), network)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"network":   network,
		"receiptId": id.String(),
	})
}

func (s *Server) handleTell(w http.ResponseWriter, r *http.Request) {
	var params fortune.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	consults, err := s.fortunes.Tell(r.Context(), params)
	if err != nil {
		s.logger.Error("fortune telling failed",
			zap.String("wallet", params.WalletAddress), zap.Error(err))
		writeError(w, http.StatusBadRequest, "error processing fortune telling request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": consults})
}

func (s *Server) handleGetConsult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	consult, err := s.fortunes.GetConsult(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("consult %s not found", id))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("error fetching consult %s", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": consult})
}

type mintNFTRequest struct {
	ConsultID string `json:"consultId"`
	ReceiptID string `json:"receiptId"`
}

func (s *Server) handleMintNFT(w http.ResponseWriter, r *http.Request) {
	var req mintNFTRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConsultID == "" || req.ReceiptID == "" {
		writeError(w, http.StatusBadRequest, "consultId and receiptId are required")
		return
	}

	result, err := s.fortunes.MintNFT(r.Context(), req.ConsultID, req.ReceiptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("error minting NFT: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
