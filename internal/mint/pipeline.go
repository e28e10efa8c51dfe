// Package mint turns a completed consult into an on-chain NFT. The pipeline
// tolerates gas-estimation failures with a manually constructed fallback
// transaction and always hands callers a structured MintResult for chain
// failures; only data-integrity problems surface as error returns.
package mint

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fortunebridge/internal/chain"
	"fortunebridge/internal/ipfs"
	"fortunebridge/internal/model"
	"fortunebridge/internal/store"
)

// Config tunes the pipeline. Gas defaults mirror what NFT-mint calls need:
// a generous explicit ceiling on the primary attempt and a larger fixed
// limit plus a steeper price premium on the fallback.
type Config struct {
	PrivateKey            string
	Gateway               string
	AssetBaseURL          string
	GasLimit              uint64
	FallbackGasLimit      uint64
	GasPremiumPct         int64
	FallbackGasPremiumPct int64
	ConfirmTimeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.GasLimit == 0 {
		c.GasLimit = 500_000
	}
	if c.FallbackGasLimit == 0 {
		c.FallbackGasLimit = 1_000_000
	}
	if c.GasPremiumPct == 0 {
		c.GasPremiumPct = 20
	}
	if c.FallbackGasPremiumPct == 0 {
		c.FallbackGasPremiumPct = 50
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 3 * time.Minute
	}
	return c
}

// Target is everything the pipeline needs to mint on one network.
type Target struct {
	Backend  Backend
	Config   model.NetworkConfig
	Contract common.Address
}

// Networks resolves a network key to its mint target.
type Networks interface {
	MintTarget(network string) (Target, error)
}

// RegistryNetworks adapts the chain registry to the Networks interface.
type RegistryNetworks struct {
	Registry *chain.Registry
}

func (r RegistryNetworks) MintTarget(network string) (Target, error) {
	entry, err := r.Registry.Get(network)
	if err != nil {
		return Target{}, err
	}
	if entry.NFT == (common.Address{}) {
		return Target{}, fmt.Errorf("network %s has no nft contract configured", network)
	}
	return Target{Backend: entry.Client, Config: entry.Config, Contract: entry.NFT}, nil
}

// Pipeline mints NFTs from consult records.
type Pipeline struct {
	cfg        Config
	networks   Networks
	uploader   ipfs.Uploader
	consults   store.ConsultStore
	mints      store.MintStore
	logger     *zap.Logger
	httpClient *http.Client
	key        *ecdsa.PrivateKey
	sender     common.Address
}

// NewPipeline builds the pipeline. The private key signs every mint
// transaction; its address is the minting account on all networks.
func NewPipeline(
	cfg Config,
	networks Networks,
	uploader ipfs.Uploader,
	consults store.ConsultStore,
	mints store.MintStore,
	logger *zap.Logger,
) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse minter private key: %w", err)
	}

	return &Pipeline{
		cfg:        cfg,
		networks:   networks,
		uploader:   uploader,
		consults:   consults,
		mints:      mints,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		key:        key,
		sender:     crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// MintFromConsult runs the full pipeline for one consult and receipt.
// Missing consults and incomplete consult data return an error (caller
// fault); blockchain failures return MintResult{Success: false} with a
// classified message.
func (p *Pipeline) MintFromConsult(ctx context.Context, consultID, receiptID string) (model.MintResult, error) {
	consult, err := p.consults.GetConsult(ctx, consultID)
	if err != nil {
		return model.MintResult{}, fmt.Errorf("consult %s: %w", consultID, err)
	}

	if consult.Network == "" {
		return model.MintResult{}, fmt.Errorf("network not specified in consult data")
	}
	if !common.IsHexAddress(consult.WalletAddress) {
		return model.MintResult{}, fmt.Errorf("invalid wallet address in consult data: %s", consult.WalletAddress)
	}

	target, err := p.networks.MintTarget(consult.Network)
	if err != nil {
		return model.MintResult{}, err
	}

	receiver := common.HexToAddress(consult.WalletAddress)
	metadata := p.buildMetadata(ctx, consult, receiptID)

	metadataURI, err := p.uploader.UploadMetadata(ctx, metadata)
	if err != nil {
		return model.MintResult{}, fmt.Errorf("upload metadata: %w", err)
	}
	// tokenURI consumers expect a dereferenceable HTTP URL.
	httpMetadataURI := ipfs.GatewayURL(p.cfg.Gateway, metadataURI)

	outcome, err := p.submitMint(ctx, target, receiver, httpMetadataURI)
	if err != nil {
		ce := chain.Classify(err)
		p.logger.Error("mint failed",
			zap.String("consult_id", consultID),
			zap.String("network", consult.Network),
			zap.String("code", string(ce.Code)),
			zap.Error(err))
		return model.MintResult{Success: false, Error: ce.UserMessage()}, nil
	}

	record := model.MintRecord{
		ID:              uuid.NewString(),
		ConsultID:       consultID,
		ReceiptID:       receiptID,
		TokenID:         outcome.tokenID,
		TxHash:          outcome.txHash,
		ContractAddress: target.Contract.Hex(),
		MetadataURI:     metadataURI,
		WalletAddress:   strings.ToLower(consult.WalletAddress),
		Network:         consult.Network,
		ChainID:         target.Config.ChainID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := p.mints.PutMint(ctx, record); err != nil {
		p.logger.Error("mint record store failed",
			zap.String("consult_id", consultID), zap.Error(err))
	}

	p.logger.Info("nft minted",
		zap.String("consult_id", consultID),
		zap.String("network", consult.Network),
		zap.Uint64("token_id", outcome.tokenID),
		zap.String("tx_hash", outcome.txHash))

	return model.MintResult{
		Success:         true,
		TxHash:          outcome.txHash,
		TokenID:         outcome.tokenID,
		ContractAddress: target.Contract.Hex(),
		ExplorerURL:     explorerTxURL(target.Config.BlockExplorer, outcome.txHash),
		MetadataURI:     metadataURI,
		HTTPMetadataURI: httpMetadataURI,
	}, nil
}

func explorerTxURL(base, txHash string) string {
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/tx/" + txHash
}
