package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps a go-ethereum RPC connection for one network.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	wsCapable bool
}

// NewClient dials the RPC endpoint. The URL scheme selects the transport:
// http(s) or ws(s); anything else is a configuration error. WebSocket
// connections stay open for the process lifetime.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	wsCapable := false
	switch {
	case strings.HasPrefix(rpcURL, "http://"), strings.HasPrefix(rpcURL, "https://"):
	case strings.HasPrefix(rpcURL, "ws://"), strings.HasPrefix(rpcURL, "wss://"):
		wsCapable = true
	default:
		return nil, fmt.Errorf("invalid rpc url scheme: %s", rpcURL)
	}

	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		wsCapable: wsCapable,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// SupportsSubscriptions reports whether the transport allows live log
// subscriptions. HTTP endpoints fall back to polling.
func (c *Client) SupportsSubscriptions() bool {
	return c.wsCapable
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// FilterLogs returns logs in the given inclusive range for one contract
// address and topic0 set.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	address common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// SubscribeLogs opens a live log subscription for one contract address and
// topic0 set. Only valid on WebSocket transports.
func (c *Client) SubscribeLogs(
	ctx context.Context,
	address common.Address,
	topic0 []common.Hash,
	sink chan<- types.Log,
) (ethereum.Subscription, error) {
	if !c.wsCapable {
		return nil, fmt.Errorf("subscriptions require a websocket endpoint")
	}
	query := ethereum.FilterQuery{Addresses: []common.Address{address}}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.SubscribeFilterLogs(ctx, query, sink)
}

// CallContract performs an eth_call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// PendingNonceAt returns the next nonce for an account.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.ethClient.PendingNonceAt(ctx, account)
}

// SuggestGasPrice returns the network's suggested gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.ethClient.SuggestGasPrice(ctx)
}

// SendTransaction submits a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.ethClient.SendTransaction(ctx, tx)
}

// WaitMined blocks until the transaction is mined and returns its receipt.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.ethClient, tx)
}
