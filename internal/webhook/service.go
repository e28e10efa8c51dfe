// Package webhook turns out-of-band provider notifications into targeted
// backfill runs that close gaps in live event delivery.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fortunebridge/internal/model"
	"fortunebridge/internal/store"
)

// DefaultBlockMargin is how far behind the notified block the compensating
// re-scan starts, tolerating ingestion delay and block reordering upstream.
const DefaultBlockMargin = 10

// Backfiller replays historical events over a block range; toBlock 0 means
// latest.
type Backfiller interface {
	Backfill(ctx context.Context, fromBlock, toBlock uint64)
}

// Service processes Nordit notifications: it audits every raw payload and
// triggers reconciliation backfills for token-transfer events.
type Service struct {
	audits      store.WebhookStore
	backfillers []Backfiller
	margin      uint64
	logger      *zap.Logger
}

func NewService(audits store.WebhookStore, backfillers []Backfiller, margin uint64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if margin == 0 {
		margin = DefaultBlockMargin
	}
	return &Service{audits: audits, backfillers: backfillers, margin: margin, logger: logger}
}

// Process handles one notification for the chain named in the webhook URL.
// The raw payload is stored even when processing fails (with the error
// attached) so no notification is silently dropped. Reconciliation runs
// detached; its outcome never affects the acknowledgment.
func (s *Service) Process(ctx context.Context, chainKey string, raw []byte) (model.WebhookResponse, error) {
	var payload model.NorditWebhook
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.storeAudit(ctx, chainKey, "", raw, err.Error())
		return model.WebhookResponse{}, fmt.Errorf("parse webhook payload: %w", err)
	}

	if err := s.storeAudit(ctx, chainKey, payload.EventType, raw, ""); err != nil {
		return model.WebhookResponse{}, err
	}

	s.logger.Info("webhook received",
		zap.String("chain", chainKey),
		zap.String("event_type", payload.EventType),
		zap.String("protocol", payload.Protocol),
		zap.String("network", payload.Network))

	if strings.EqualFold(payload.EventType, "TOKEN_TRANSFER") {
		if block, ok := earliestBlock(payload.Messages); ok {
			s.triggerReconciliation(block)
		} else {
			s.logger.Warn("token transfer webhook without block number", zap.String("chain", chainKey))
		}
	}

	return model.WebhookResponse{
		Success:     true,
		Message:     "Webhook received and processed successfully",
		Chain:       chainKey,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// triggerReconciliation re-scans every registered network of every engine
// from a margin below the notified block. Fire-and-forget: failures are
// logged inside the backfillers, never propagated to the acknowledgment.
func (s *Service) triggerReconciliation(notifiedBlock uint64) {
	from := uint64(1)
	if notifiedBlock > s.margin {
		from = notifiedBlock - s.margin
	}

	s.logger.Info("reconciliation backfill triggered",
		zap.Uint64("notified_block", notifiedBlock),
		zap.Uint64("from_block", from))

	for _, backfiller := range s.backfillers {
		go backfiller.Backfill(context.Background(), from, 0)
	}
}

func (s *Service) storeAudit(ctx context.Context, chainKey, eventType string, raw []byte, processingError string) error {
	err := s.audits.PutWebhook(ctx, model.WebhookAudit{
		Chain:           chainKey,
		EventType:       eventType,
		Payload:         json.RawMessage(raw),
		ProcessingError: processingError,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("webhook audit store failed", zap.String("chain", chainKey), zap.Error(err))
	}
	return err
}

func earliestBlock(messages []model.NorditMessage) (uint64, bool) {
	var min uint64
	found := false
	for _, msg := range messages {
		if msg.BlockNumber == 0 {
			continue
		}
		if !found || msg.BlockNumber < min {
			min = msg.BlockNumber
			found = true
		}
	}
	return min, found
}
