package mint

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"fortunebridge/internal/chain"
	"fortunebridge/internal/contracts"
)

// Backend is the slice of the chain client the pipeline submits through.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

type mintOutcome struct {
	txHash  string
	tokenID uint64
}

// submitMint sends the safeMint transaction. The primary attempt uses an
// explicit gas ceiling and a modest price premium; when it fails with the
// unpredictable-gas-limit class, exactly one fallback runs with a larger
// fixed limit and a steeper premium. Any other failure propagates.
func (p *Pipeline) submitMint(ctx context.Context, target Target, receiver common.Address, tokenURI string) (mintOutcome, error) {
	nftABI, err := contracts.ERC721ABI()
	if err != nil {
		return mintOutcome{}, err
	}
	data, err := nftABI.Pack("safeMint", receiver, tokenURI)
	if err != nil {
		return mintOutcome{}, fmt.Errorf("encode safeMint: %w", err)
	}

	outcome, err := p.sendAndWait(ctx, target, receiver, data, p.cfg.GasLimit, p.cfg.GasPremiumPct)
	if err == nil {
		return outcome, nil
	}
	if !chain.IsCode(err, chain.CodeGasUnpredictable) {
		return mintOutcome{}, err
	}

	p.logger.Warn("mint hit gas limit estimation failure, retrying with fixed gas",
		zap.String("network", target.Config.Key),
		zap.Uint64("gas_limit", p.cfg.FallbackGasLimit),
		zap.Error(err))

	outcome, fallbackErr := p.sendAndWait(ctx, target, receiver, data, p.cfg.FallbackGasLimit, p.cfg.FallbackGasPremiumPct)
	if fallbackErr != nil {
		return mintOutcome{}, fmt.Errorf("fallback mint: %w", fallbackErr)
	}
	return outcome, nil
}

func (p *Pipeline) sendAndWait(
	ctx context.Context,
	target Target,
	receiver common.Address,
	data []byte,
	gasLimit uint64,
	premiumPct int64,
) (mintOutcome, error) {
	backend := target.Backend

	nonce, err := backend.PendingNonceAt(ctx, p.sender)
	if err != nil {
		return mintOutcome{}, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return mintOutcome{}, fmt.Errorf("fetch gas price: %w", err)
	}
	bumped := new(big.Int).Div(
		new(big.Int).Mul(gasPrice, big.NewInt(100+premiumPct)),
		big.NewInt(100),
	)

	tx := types.NewTransaction(nonce, target.Contract, big.NewInt(0), gasLimit, bumped, data)
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(target.Config.ChainID))
	signed, err := types.SignTx(tx, signer, p.key)
	if err != nil {
		return mintOutcome{}, fmt.Errorf("sign mint tx: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return mintOutcome{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
	defer cancel()
	receipt, err := backend.WaitMined(waitCtx, signed)
	if err != nil {
		return mintOutcome{}, fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return mintOutcome{}, &chain.Error{
			Code: chain.CodeGasUnpredictable,
			Err:  fmt.Errorf("mint transaction reverted: %s", receipt.TxHash.Hex()),
		}
	}

	return mintOutcome{
		txHash:  receipt.TxHash.Hex(),
		tokenID: tokenIDFromReceipt(receipt, receiver),
	}, nil
}

// tokenIDFromReceipt recovers the token id the contract assigned by parsing
// the ERC-721 Transfer log to the receiver. The contract autogenerates ids,
// so the log is authoritative; 0 when no matching log exists.
func tokenIDFromReceipt(receipt *types.Receipt, receiver common.Address) uint64 {
	nftABI, err := contracts.ERC721ABI()
	if err != nil {
		return 0
	}
	transferID := nftABI.Events["Transfer"].ID

	for _, log := range receipt.Logs {
		if len(log.Topics) != 4 || log.Topics[0] != transferID {
			continue
		}
		to := common.BytesToAddress(log.Topics[2].Bytes())
		if to != receiver {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[3].Bytes()).Uint64()
	}
	return 0
}
