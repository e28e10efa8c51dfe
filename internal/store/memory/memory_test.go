package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fortunebridge/internal/model"
	"fortunebridge/internal/store"
)

func TestInsertEventIfAbsent(t *testing.T) {
	s := New()
	ev := model.PaymentEvent{
		WalletAddress: "0xabc",
		ReceiptID:     "42",
		Network:       "sepolia",
		BlockNumber:   150,
	}

	inserted, err := s.InsertEventIfAbsent(context.Background(), "fortunes", ev)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.InsertEventIfAbsent(context.Background(), "fortunes", ev)
	require.NoError(t, err)
	require.False(t, inserted)

	// Same tuple in another collection is a distinct event.
	inserted, err = s.InsertEventIfAbsent(context.Background(), "nfts", ev)
	require.NoError(t, err)
	require.True(t, inserted)

	// Same receipt on another network is a distinct event.
	ev.Network = "kaia"
	inserted, err = s.InsertEventIfAbsent(context.Background(), "fortunes", ev)
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestInsertEventIfAbsentConcurrent(t *testing.T) {
	s := New()
	ev := model.PaymentEvent{WalletAddress: "0xabc", ReceiptID: "1", Network: "sepolia"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	insertedCount := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := s.InsertEventIfAbsent(context.Background(), "fortunes", ev)
			require.NoError(t, err)
			if inserted {
				mu.Lock()
				insertedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, insertedCount)
	events, err := s.FindEvents(context.Background(), "fortunes", model.EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestFindEventsFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	seed := []model.PaymentEvent{
		{WalletAddress: "0xaaa", ReceiptID: "1", Network: "sepolia", TxHash: "0x1", BlockNumber: 100},
		{WalletAddress: "0xaaa", ReceiptID: "2", Network: "sepolia", TxHash: "0x2", BlockNumber: 200},
		{WalletAddress: "0xbbb", ReceiptID: "3", Network: "sepolia", TxHash: "0x3", BlockNumber: 200},
	}
	for _, ev := range seed {
		_, err := s.InsertEventIfAbsent(ctx, "fortunes", ev)
		require.NoError(t, err)
	}

	byWallet, err := s.FindEvents(ctx, "fortunes", model.EventQuery{WalletAddress: "0xaaa"})
	require.NoError(t, err)
	require.Len(t, byWallet, 2)

	byTx, err := s.FindEvents(ctx, "fortunes", model.EventQuery{TxHash: "0x3"})
	require.NoError(t, err)
	require.Len(t, byTx, 1)
	require.Equal(t, "0xbbb", byTx[0].WalletAddress)

	byBlock, err := s.FindEvents(ctx, "fortunes", model.EventQuery{BlockNumber: 200})
	require.NoError(t, err)
	require.Len(t, byBlock, 2)

	combined, err := s.FindEvents(ctx, "fortunes", model.EventQuery{WalletAddress: "0xaaa", BlockNumber: 200})
	require.NoError(t, err)
	require.Len(t, combined, 1)
	require.Equal(t, "2", combined[0].ReceiptID)
}

func TestConsultRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.Error(t, s.PutConsult(ctx, model.Consult{}))

	consult := model.Consult{ID: "doc-1", Consult: "love", WalletAddress: "0xabc"}
	require.NoError(t, s.PutConsult(ctx, consult))

	got, err := s.GetConsult(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, consult, got)

	_, err = s.GetConsult(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPutMintAssignsID(t *testing.T) {
	s := New()
	require.NoError(t, s.PutMint(context.Background(), model.MintRecord{ConsultID: "doc-1"}))

	mints := s.Mints()
	require.Len(t, mints, 1)
	require.NotEmpty(t, mints[0].ID)
}
