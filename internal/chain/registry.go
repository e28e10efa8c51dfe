package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"fortunebridge/internal/contracts"
	"fortunebridge/internal/model"
)

// Entry binds one network's connection to its contract addresses. Read-only
// after construction.
type Entry struct {
	Config  model.NetworkConfig
	Client  *Client
	Payment common.Address
	NFT     common.Address
}

// Registry holds one entry per configured network, built once at startup. A
// network with bad config is skipped with a warning; the others proceed
// independently.
type Registry struct {
	entries map[string]*Entry
	logger  *zap.Logger
}

// NewRegistry dials every configured network. Never fails as a whole:
// unreachable or misconfigured networks are logged and left out.
func NewRegistry(ctx context.Context, networks map[string]model.NetworkConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries := make(map[string]*Entry, len(networks))
	for key, cfg := range networks {
		if cfg.RPCURL == "" {
			logger.Warn("network has no rpc url, skipping", zap.String("network", key))
			continue
		}
		if !common.IsHexAddress(cfg.ContractAddress) {
			logger.Warn("network has invalid contract address, skipping",
				zap.String("network", key), zap.String("address", cfg.ContractAddress))
			continue
		}

		client, err := NewClient(ctx, cfg.RPCURL)
		if err != nil {
			logger.Warn("network dial failed, skipping",
				zap.String("network", key), zap.Error(err))
			continue
		}

		entry := &Entry{
			Config:  cfg,
			Client:  client,
			Payment: common.HexToAddress(cfg.ContractAddress),
		}
		if common.IsHexAddress(cfg.NFTContractAddress) {
			entry.NFT = common.HexToAddress(cfg.NFTContractAddress)
		}
		entries[key] = entry

		logger.Info("network registered",
			zap.String("network", key),
			zap.Uint64("chain_id", cfg.ChainID),
			zap.Bool("websocket", client.SupportsSubscriptions()))
	}

	return &Registry{entries: entries, logger: logger}
}

// Get returns the entry for a network key.
func (r *Registry) Get(network string) (*Entry, error) {
	entry, ok := r.entries[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNetworkNotConfigured, network)
	}
	return entry, nil
}

// Networks returns the registered network keys in stable order.
func (r *Registry) Networks() []string {
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns all registered entries keyed by network.
func (r *Registry) Entries() map[string]*Entry {
	out := make(map[string]*Entry, len(r.entries))
	for key, entry := range r.entries {
		out[key] = entry
	}
	return out
}

// CurrentReceiptID reads the payment contract's receipt counter.
func (r *Registry) CurrentReceiptID(ctx context.Context, network string) (*big.Int, error) {
	entry, err := r.Get(network)
	if err != nil {
		return nil, err
	}

	paymentABI, err := contracts.PaymentABI()
	if err != nil {
		return nil, err
	}
	data, err := paymentABI.Pack("getCurrentReceiptId")
	if err != nil {
		return nil, err
	}

	out, err := entry.Client.CallContract(ctx, ethereum.CallMsg{To: &entry.Payment, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getCurrentReceiptId: %w", err)
	}

	values, err := paymentABI.Unpack("getCurrentReceiptId", out)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected getCurrentReceiptId output: %d values", len(values))
	}
	id, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getCurrentReceiptId output type %T", values[0])
	}
	return id, nil
}

// Close closes every network connection.
func (r *Registry) Close() {
	for _, entry := range r.entries {
		entry.Client.Close()
	}
}
