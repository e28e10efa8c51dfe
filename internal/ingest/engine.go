// Package ingest detects on-chain payment events through two paths, a live
// subscription and a historical backfill, which converge on the same
// dedup-and-store routine.
package ingest

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"fortunebridge/internal/chain"
	"fortunebridge/internal/contracts"
	"fortunebridge/internal/model"
	"fortunebridge/internal/store"
)

// LogSource is the slice of the chain client the engine depends on.
type LogSource interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 []common.Hash) ([]types.Log, error)
	SubscribeLogs(ctx context.Context, address common.Address, topic0 []common.Hash, sink chan<- types.Log) (ethereum.Subscription, error)
	SupportsSubscriptions() bool
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Config holds engine tuning knobs.
type Config struct {
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = 2000
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	return c
}

type listenerState int

const (
	stateRegistered listenerState = iota
	stateListening
)

// listener is one network's independent unit: its source, its contract
// address, and the channel the live path feeds. Listening is terminal for
// the process lifetime.
type listener struct {
	network model.NetworkConfig
	source  LogSource
	address common.Address
	events  chan types.Log
	state   listenerState
}

// Engine ingests one payment event kind across every registered network.
type Engine struct {
	kind      model.EventKind
	topic0    common.Hash
	cfg       Config
	events    store.EventStore
	logger    *zap.Logger
	listeners map[string]*listener
}

// NewEngine builds an engine for one event kind.
func NewEngine(kind model.EventKind, cfg Config, events store.EventStore, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	paymentABI, err := contracts.PaymentABI()
	if err != nil {
		return nil, err
	}
	event, ok := paymentABI.Events[kind.EventName()]
	if !ok {
		return nil, fmt.Errorf("unknown payment event: %s", kind.EventName())
	}

	return &Engine{
		kind:      kind,
		topic0:    event.ID,
		cfg:       cfg.withDefaults(),
		events:    events,
		logger:    logger.With(zap.String("kind", string(kind))),
		listeners: make(map[string]*listener),
	}, nil
}

// Register adds one network. Must be called before Start.
func (e *Engine) Register(network model.NetworkConfig, source LogSource, address common.Address) {
	e.listeners[network.Key] = &listener{
		network: network,
		source:  source,
		address: address,
		events:  make(chan types.Log, 64),
	}
}

// FromRegistry registers every entry of a chain registry.
func (e *Engine) FromRegistry(reg *chain.Registry) {
	for _, entry := range reg.Entries() {
		e.Register(entry.Config, entry.Client, entry.Payment)
	}
}

// Networks returns the registered network keys.
func (e *Engine) Networks() []string {
	keys := make([]string, 0, len(e.listeners))
	for key := range e.listeners {
		keys = append(keys, key)
	}
	return keys
}

// Start launches the live path for every network: a producer pushing raw
// logs onto the listener's channel (subscription on WebSocket transports,
// polling otherwise) and a single consumer running dedup-and-store.
// Processing errors are logged and never tear the listener down.
func (e *Engine) Start(ctx context.Context) {
	for _, l := range e.listeners {
		l.state = stateListening
		go e.consumeLoop(ctx, l)
		if l.source.SupportsSubscriptions() {
			go e.subscribeLoop(ctx, l)
		} else {
			go e.pollLoop(ctx, l)
		}
		e.logger.Info("listening for payment events",
			zap.String("network", l.network.Key),
			zap.String("event", e.kind.EventName()),
			zap.Bool("subscription", l.source.SupportsSubscriptions()))
	}
}

func (e *Engine) consumeLoop(ctx context.Context, l *listener) {
	for {
		select {
		case <-ctx.Done():
			return
		case log := <-l.events:
			if err := e.process(ctx, l.network, log); err != nil {
				e.logger.Error("event processing failed",
					zap.String("network", l.network.Key),
					zap.String("tx_hash", log.TxHash.Hex()),
					zap.Error(err))
			}
		}
	}
}

func (e *Engine) subscribeLoop(ctx context.Context, l *listener) {
	for {
		sub, err := l.source.SubscribeLogs(ctx, l.address, []common.Hash{e.topic0}, l.events)
		if err != nil {
			e.logger.Warn("subscribe failed, retrying",
				zap.String("network", l.network.Key), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.RetryBackoff):
			}
			continue
		}

		select {
		case <-ctx.Done():
			sub.Unsubscribe()
			return
		case err := <-sub.Err():
			e.logger.Warn("subscription dropped, resubscribing",
				zap.String("network", l.network.Key), zap.Error(err))
			sub.Unsubscribe()
		}
	}
}

// pollLoop emulates a live subscription over HTTP transports by filtering
// new blocks on a ticker and feeding the same channel.
func (e *Engine) pollLoop(ctx context.Context, l *listener) {
	lastSeen, err := l.source.LatestBlockNumber(ctx)
	if err != nil {
		e.logger.Warn("latest block fetch failed, polling from 0",
			zap.String("network", l.network.Key), zap.Error(err))
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		latest, err := l.source.LatestBlockNumber(ctx)
		if err != nil {
			e.logger.Warn("latest block fetch failed",
				zap.String("network", l.network.Key), zap.Error(err))
			continue
		}
		if latest <= lastSeen {
			continue
		}

		logs, err := l.source.FilterLogs(ctx, lastSeen+1, latest, l.address, []common.Hash{e.topic0})
		if err != nil {
			e.logger.Warn("poll filter failed",
				zap.String("network", l.network.Key),
				zap.Uint64("from", lastSeen+1), zap.Uint64("to", latest),
				zap.Error(err))
			continue
		}
		lastSeen = latest

		for _, log := range logs {
			select {
			case <-ctx.Done():
				return
			case l.events <- log:
			}
		}
	}
}

// Backfill replays the event log over [fromBlock, toBlock] for every
// registered network. toBlock 0 means latest. A failing network is logged
// and skipped; the others proceed. Within one network, logs are processed in
// the ascending order the chain returns them.
func (e *Engine) Backfill(ctx context.Context, fromBlock, toBlock uint64) {
	for _, l := range e.listeners {
		if err := e.backfillNetwork(ctx, l, fromBlock, toBlock); err != nil {
			e.logger.Error("backfill failed",
				zap.String("network", l.network.Key),
				zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock),
				zap.Error(err))
		}
	}
}

func (e *Engine) backfillNetwork(ctx context.Context, l *listener, fromBlock, toBlock uint64) error {
	to := toBlock
	if to == 0 {
		latest, err := l.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}
	if fromBlock > to {
		e.logger.Info("nothing to backfill",
			zap.String("network", l.network.Key),
			zap.Uint64("from", fromBlock), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(fromBlock, to, e.cfg.BatchSize)
	if err != nil {
		return err
	}

	found := 0
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var logs []types.Log
		err := withRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			logs, err = l.source.FilterLogs(ctx, blockRange.From, blockRange.To, l.address, []common.Hash{e.topic0})
			return err
		})
		if err != nil {
			return fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}

		for _, log := range logs {
			if err := e.process(ctx, l.network, log); err != nil {
				e.logger.Error("backfill event processing failed",
					zap.String("network", l.network.Key),
					zap.String("tx_hash", log.TxHash.Hex()),
					zap.Error(err))
			}
		}
		found += len(logs)
	}

	e.logger.Info("backfill complete",
		zap.String("network", l.network.Key),
		zap.Uint64("from", fromBlock), zap.Uint64("to", to),
		zap.Int("events", found))
	return nil
}

// process normalizes one raw log and runs the dedup-and-store routine shared
// by both paths.
func (e *Engine) process(ctx context.Context, network model.NetworkConfig, log types.Log) error {
	wallet, receiptID, err := parsePaymentLog(log)
	if err != nil {
		return err
	}

	record := model.PaymentEvent{
		WalletAddress: wallet,
		ReceiptID:     receiptID,
		Network:       network.Key,
		BlockNumber:   log.BlockNumber,
		TxHash:        log.TxHash.Hex(),
		Used:          false,
		CreatedAt:     time.Now().UTC(),
	}
	if e.kind == model.KindMinting {
		record.ChainID = network.ChainID
		record.BlockExplorer = network.BlockExplorer
	}

	inserted, err := e.events.InsertEventIfAbsent(ctx, e.kind.Collection(), record)
	if err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	if !inserted {
		e.logger.Info("event already recorded",
			zap.String("network", network.Key),
			zap.String("wallet", wallet),
			zap.String("receipt_id", receiptID))
		return nil
	}

	e.logger.Info("payment event stored",
		zap.String("network", network.Key),
		zap.String("wallet", wallet),
		zap.String("receipt_id", receiptID),
		zap.Uint64("block", log.BlockNumber))
	return nil
}

// parsePaymentLog extracts the indexed wallet address and the uint256
// receipt id. The receipt is rendered as a decimal string to avoid precision
// loss downstream.
func parsePaymentLog(log types.Log) (wallet, receiptID string, err error) {
	if len(log.Topics) < 2 {
		return "", "", fmt.Errorf("payment log missing indexed user topic")
	}
	if len(log.Data) < 32 {
		return "", "", fmt.Errorf("payment log data too short: %d bytes", len(log.Data))
	}

	wallet = strings.ToLower(common.BytesToAddress(log.Topics[1].Bytes()).Hex())
	receiptID = new(big.Int).SetBytes(log.Data[:32]).String()
	return wallet, receiptID, nil
}
