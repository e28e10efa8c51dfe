// Package memory provides an in-memory store used by tests and local runs
// without a database.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"fortunebridge/internal/model"
	"fortunebridge/internal/store"
)

// Store keeps every collection in process memory behind one mutex, so the
// check-then-insert dedup is atomic.
type Store struct {
	mu       sync.Mutex
	events   map[string][]model.PaymentEvent
	consults map[string]model.Consult
	mints    map[string]model.MintRecord
	webhooks []model.WebhookAudit
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		events:   make(map[string][]model.PaymentEvent),
		consults: make(map[string]model.Consult),
		mints:    make(map[string]model.MintRecord),
	}
}

func (s *Store) InsertEventIfAbsent(_ context.Context, collection string, ev model.PaymentEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.events[collection] {
		if existing.WalletAddress == ev.WalletAddress &&
			existing.ReceiptID == ev.ReceiptID &&
			existing.Network == ev.Network {
			return false, nil
		}
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	s.events[collection] = append(s.events[collection], ev)
	return true, nil
}

func (s *Store) FindEvents(_ context.Context, collection string, q model.EventQuery) ([]model.PaymentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.PaymentEvent
	for _, ev := range s.events[collection] {
		if q.WalletAddress != "" && ev.WalletAddress != q.WalletAddress {
			continue
		}
		if q.TxHash != "" && ev.TxHash != q.TxHash {
			continue
		}
		if q.BlockNumber != 0 && ev.BlockNumber != q.BlockNumber {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) PutConsult(_ context.Context, c model.Consult) error {
	if c.ID == "" {
		return fmt.Errorf("consult id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consults[c.ID] = c
	return nil
}

func (s *Store) GetConsult(_ context.Context, id string) (model.Consult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consults[id]
	if !ok {
		return model.Consult{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) PutMint(_ context.Context, m model.MintRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.mints[m.ID] = m
	return nil
}

// Mints returns every stored mint record; test helper.
func (s *Store) Mints() []model.MintRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MintRecord, 0, len(s.mints))
	for _, m := range s.mints {
		out = append(out, m)
	}
	return out
}

func (s *Store) PutWebhook(_ context.Context, w model.WebhookAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	s.webhooks = append(s.webhooks, w)
	return nil
}

// Webhooks returns the stored audit log; test helper.
func (s *Store) Webhooks() []model.WebhookAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WebhookAudit, len(s.webhooks))
	copy(out, s.webhooks)
	return out
}
