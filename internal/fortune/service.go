package fortune

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fortunebridge/internal/model"
	"fortunebridge/internal/store"
)

// Minter is the downstream minting pipeline.
type Minter interface {
	MintFromConsult(ctx context.Context, consultID, receiptID string) (model.MintResult, error)
}

// Service glues the fortune API, the consult store, and the minting
// pipeline together.
type Service struct {
	api      API
	consults store.ConsultStore
	minter   Minter
	logger   *zap.Logger
}

func NewService(api API, consults store.ConsultStore, minter Minter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, consults: consults, minter: minter, logger: logger}
}

// Tell calls the fortune API and stores every returned reading as a consult
// document. Each consult carries the originating payment identifiers so the
// minting pipeline can validate and route it later.
func (s *Service) Tell(ctx context.Context, p Params) ([]model.Consult, error) {
	if p.WalletAddress == "" {
		return nil, fmt.Errorf("wallet address is required")
	}

	readings, err := s.api.Call(ctx, p)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	consults := make([]model.Consult, 0, len(readings))
	for _, reading := range readings {
		id := reading.DocumentID
		if id == "" {
			id = uuid.NewString()
		}
		raw, _ := json.Marshal(reading)

		consult := model.Consult{
			ID:            id,
			Consult:       reading.Consult,
			Filename:      reading.Filename,
			Lang:          reading.Lang,
			Short:         reading.Short,
			Long:          reading.Long,
			Sound:         reading.Sound,
			Tarot:         reading.Tarot,
			TarotName:     reading.TarotName,
			TxHash:        p.TxHash,
			WalletAddress: strings.ToLower(p.WalletAddress),
			Network:       p.ChainID,
			ReceiptID:     p.ReceiptID,
			Raw:           raw,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.consults.PutConsult(ctx, consult); err != nil {
			return nil, fmt.Errorf("store consult %s: %w", id, err)
		}
		consults = append(consults, consult)
	}

	s.logger.Info("consults stored",
		zap.String("wallet", strings.ToLower(p.WalletAddress)),
		zap.String("receipt_id", p.ReceiptID),
		zap.Int("count", len(consults)))
	return consults, nil
}

// GetConsult returns one stored consult by id.
func (s *Service) GetConsult(ctx context.Context, id string) (model.Consult, error) {
	return s.consults.GetConsult(ctx, id)
}

// MintNFT hands a completed consult to the minting pipeline.
func (s *Service) MintNFT(ctx context.Context, consultID, receiptID string) (model.MintResult, error) {
	return s.minter.MintFromConsult(ctx, consultID, receiptID)
}
