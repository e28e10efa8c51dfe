package mint

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"fortunebridge/internal/chain"
	"fortunebridge/internal/contracts"
	"fortunebridge/internal/model"
	"fortunebridge/internal/store"
	"fortunebridge/internal/store/memory"
)

// Throwaway development key, never funded anywhere.
const testMinterKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testWallet = "0xAbcdEF1234567890aBcDeF1234567890abCdef12"

type fakeBackend struct {
	sendErrs []error
	sent     []*types.Transaction
	tokenID  int64
	receiver common.Address
	revert   bool
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(100), nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if len(b.sendErrs) > 0 {
		err := b.sendErrs[0]
		b.sendErrs = b.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) WaitMined(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: tx.Hash(),
	}
	if b.revert {
		receipt.Status = types.ReceiptStatusFailed
		return receipt, nil
	}
	if b.tokenID > 0 {
		nftABI, err := contracts.ERC721ABI()
		if err != nil {
			return nil, err
		}
		receipt.Logs = []*types.Log{{
			Topics: []common.Hash{
				nftABI.Events["Transfer"].ID,
				common.Hash{},
				common.BytesToHash(b.receiver.Bytes()),
				common.BigToHash(big.NewInt(b.tokenID)),
			},
		}}
	}
	return receipt, nil
}

type fakeNetworks struct {
	targets map[string]Target
}

func (f fakeNetworks) MintTarget(network string) (Target, error) {
	target, ok := f.targets[network]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", chain.ErrNetworkNotConfigured, network)
	}
	return target, nil
}

type fakeUploader struct {
	metadata []model.NFTMetadata
	images   int
}

func (f *fakeUploader) UploadMetadata(_ context.Context, metadata model.NFTMetadata) (string, error) {
	f.metadata = append(f.metadata, metadata)
	return "ipfs://metacid", nil
}

func (f *fakeUploader) UploadImage(context.Context, []byte) (string, error) {
	f.images++
	return "ipfs://imagecid", nil
}

func testConsult() model.Consult {
	return model.Consult{
		ID:            "consult-1",
		Consult:       "love",
		Lang:          "en",
		Short:         "A bright omen.",
		Tarot:         "https://assets.example.com/sun.png",
		TarotName:     "The Sun",
		WalletAddress: testWallet,
		Network:       "sepolia",
	}
}

func newTestPipeline(t *testing.T, backend *fakeBackend) (*Pipeline, *memory.Store, *fakeUploader) {
	t.Helper()
	docs := memory.New()
	require.NoError(t, docs.PutConsult(context.Background(), testConsult()))

	backend.receiver = common.HexToAddress(testWallet)

	uploader := &fakeUploader{}
	pipeline, err := NewPipeline(
		Config{PrivateKey: testMinterKey, Gateway: "https://gateway.example.com/ipfs/"},
		fakeNetworks{targets: map[string]Target{
			"sepolia": {
				Backend: backend,
				Config: model.NetworkConfig{
					Key:           "sepolia",
					ChainID:       11155111,
					BlockExplorer: "https://sepolia.etherscan.io",
				},
				Contract: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
			},
		}},
		uploader,
		docs,
		docs,
		nil,
	)
	require.NoError(t, err)
	return pipeline, docs, uploader
}

func TestMintFromConsultSuccess(t *testing.T) {
	backend := &fakeBackend{tokenID: 777}
	pipeline, docs, uploader := newTestPipeline(t, backend)

	result, err := pipeline.MintFromConsult(context.Background(), "consult-1", "42")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, uint64(777), result.TokenID)
	require.NotEmpty(t, result.TxHash)
	require.Equal(t, "ipfs://metacid", result.MetadataURI)
	require.Equal(t, "https://gateway.example.com/ipfs/metacid", result.HTTPMetadataURI)
	require.Equal(t, "https://sepolia.etherscan.io/tx/"+result.TxHash, result.ExplorerURL)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	require.Equal(t, uint64(500_000), tx.Gas())
	require.Equal(t, int64(120), tx.GasPrice().Int64())

	require.Len(t, uploader.metadata, 1)
	metadata := uploader.metadata[0]
	require.Equal(t, "The Sun", metadata.Name)
	require.Equal(t, "A bright omen.", metadata.Description)
	require.Equal(t, "https://assets.example.com/sun.png", metadata.Image)

	mints := docs.Mints()
	require.Len(t, mints, 1)
	require.Equal(t, "consult-1", mints[0].ConsultID)
	require.Equal(t, "42", mints[0].ReceiptID)
	require.Equal(t, uint64(777), mints[0].TokenID)
	require.Equal(t, strings.ToLower(testWallet), mints[0].WalletAddress)
	require.Equal(t, uint64(11155111), mints[0].ChainID)
}

func TestMintGasFallback(t *testing.T) {
	backend := &fakeBackend{
		tokenID:  9,
		sendErrs: []error{errors.New("cannot estimate gas; transaction may fail")},
	}
	pipeline, _, _ := newTestPipeline(t, backend)

	result, err := pipeline.MintFromConsult(context.Background(), "consult-1", "42")
	require.NoError(t, err)
	require.True(t, result.Success)

	// The failed primary never reached the node, so only the fallback tx is
	// recorded, with the larger fixed limit and steeper premium.
	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	require.Equal(t, uint64(1_000_000), tx.Gas())
	require.Equal(t, int64(150), tx.GasPrice().Int64())
}

func TestMintFallbackRunsExactlyOnce(t *testing.T) {
	backend := &fakeBackend{
		sendErrs: []error{
			errors.New("cannot estimate gas"),
			errors.New("cannot estimate gas"),
			errors.New("cannot estimate gas"),
		},
	}
	pipeline, _, _ := newTestPipeline(t, backend)

	result, err := pipeline.MintFromConsult(context.Background(), "consult-1", "42")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
	require.Len(t, backend.sent, 0)
	// One primary plus one fallback, no third attempt.
	require.Len(t, backend.sendErrs, 1)
}

func TestMintNonGasFailureSkipsFallback(t *testing.T) {
	backend := &fakeBackend{
		sendErrs: []error{
			errors.New("insufficient funds for gas * price + value"),
			errors.New("insufficient funds for gas * price + value"),
		},
	}
	pipeline, docs, _ := newTestPipeline(t, backend)

	result, err := pipeline.MintFromConsult(context.Background(), "consult-1", "42")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "insufficient funds to cover gas for the transaction", result.Error)
	require.Len(t, backend.sendErrs, 1)
	require.Empty(t, docs.Mints())
}

func TestMintRevertedPrimaryFallsBack(t *testing.T) {
	backend := &fakeBackend{tokenID: 3, revert: true}
	pipeline, _, _ := newTestPipeline(t, backend)

	result, err := pipeline.MintFromConsult(context.Background(), "consult-1", "42")
	require.NoError(t, err)
	require.False(t, result.Success)
	// Reverted receipts classify as the gas class, so both attempts ran.
	require.Len(t, backend.sent, 2)
}

func TestMintUnknownConsult(t *testing.T) {
	backend := &fakeBackend{}
	pipeline, _, _ := newTestPipeline(t, backend)

	_, err := pipeline.MintFromConsult(context.Background(), "missing", "42")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Empty(t, backend.sent)
}

func TestMintRejectsIncompleteConsult(t *testing.T) {
	backend := &fakeBackend{}
	pipeline, docs, uploader := newTestPipeline(t, backend)

	noNetwork := testConsult()
	noNetwork.ID = "consult-no-network"
	noNetwork.Network = ""
	require.NoError(t, docs.PutConsult(context.Background(), noNetwork))

	_, err := pipeline.MintFromConsult(context.Background(), "consult-no-network", "42")
	require.Error(t, err)

	badWallet := testConsult()
	badWallet.ID = "consult-bad-wallet"
	badWallet.WalletAddress = "not-an-address"
	require.NoError(t, docs.PutConsult(context.Background(), badWallet))

	_, err = pipeline.MintFromConsult(context.Background(), "consult-bad-wallet", "42")
	require.Error(t, err)

	// Validation fails before any upload or transaction.
	require.Empty(t, uploader.metadata)
	require.Empty(t, backend.sent)
}

func TestMintUnknownNetwork(t *testing.T) {
	backend := &fakeBackend{}
	pipeline, docs, _ := newTestPipeline(t, backend)

	consult := testConsult()
	consult.ID = "consult-polygon"
	consult.Network = "polygon"
	require.NoError(t, docs.PutConsult(context.Background(), consult))

	_, err := pipeline.MintFromConsult(context.Background(), "consult-polygon", "42")
	require.ErrorIs(t, err, chain.ErrNetworkNotConfigured)
	require.Empty(t, backend.sent)
}

func TestMintRejectsBadPrivateKey(t *testing.T) {
	_, err := NewPipeline(Config{PrivateKey: "zz"}, fakeNetworks{}, &fakeUploader{}, memory.New(), memory.New(), nil)
	require.Error(t, err)
}

func TestTokenIDFromReceipt(t *testing.T) {
	receiver := common.HexToAddress(testWallet)
	nftABI, err := contracts.ERC721ABI()
	require.NoError(t, err)

	receipt := &types.Receipt{Logs: []*types.Log{
		// Transfer to somebody else.
		{Topics: []common.Hash{
			nftABI.Events["Transfer"].ID,
			common.Hash{},
			common.BytesToHash(common.HexToAddress("0x1").Bytes()),
			common.BigToHash(big.NewInt(1)),
		}},
		// Approval-shaped log with the wrong topic count.
		{Topics: []common.Hash{nftABI.Events["Transfer"].ID}},
		// The one that counts.
		{Topics: []common.Hash{
			nftABI.Events["Transfer"].ID,
			common.Hash{},
			common.BytesToHash(receiver.Bytes()),
			common.BigToHash(big.NewInt(555)),
		}},
	}}

	require.Equal(t, uint64(555), tokenIDFromReceipt(receipt, receiver))
	require.Equal(t, uint64(0), tokenIDFromReceipt(&types.Receipt{}, receiver))
}
