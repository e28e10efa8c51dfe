// Package postgres backs the document store with Postgres. The event dedup
// relies on a unique composite index plus ON CONFLICT DO NOTHING, so
// concurrent detections of the same event cannot produce duplicates.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fortunebridge/internal/model"
	"fortunebridge/internal/store"
)

// Store provides Postgres persistence for all collections.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Init creates the schema if it does not exist yet. Statements run one at a
// time; the extended query protocol rejects multi-statement strings.
func (s *Store) Init(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS payment_events (
			id uuid PRIMARY KEY,
			collection text NOT NULL,
			wallet_address text NOT NULL,
			receipt_id text NOT NULL,
			network text NOT NULL,
			chain_id bigint NOT NULL DEFAULT 0,
			block_explorer text NOT NULL DEFAULT '',
			block_number bigint NOT NULL,
			tx_hash text NOT NULL,
			used boolean NOT NULL DEFAULT false,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS payment_events_tuple_idx
			ON payment_events (collection, wallet_address, receipt_id, network)`,
		`CREATE TABLE IF NOT EXISTS consults (
			id text PRIMARY KEY,
			doc jsonb NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS mints (
			id uuid PRIMARY KEY,
			consult_id text NOT NULL,
			receipt_id text NOT NULL,
			doc jsonb NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS webhooks (
			id uuid PRIMARY KEY,
			chain text NOT NULL,
			event_type text NOT NULL,
			payload jsonb NOT NULL,
			processing_error text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) InsertEventIfAbsent(ctx context.Context, collection string, ev model.PaymentEvent) (bool, error) {
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO payment_events (
			id, collection, wallet_address, receipt_id, network,
			chain_id, block_explorer, block_number, tx_hash, used, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (collection, wallet_address, receipt_id, network) DO NOTHING
	`,
		id,
		collection,
		ev.WalletAddress,
		ev.ReceiptID,
		ev.Network,
		int64(ev.ChainID),
		ev.BlockExplorer,
		int64(ev.BlockNumber),
		ev.TxHash,
		ev.Used,
		ev.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) FindEvents(ctx context.Context, collection string, q model.EventQuery) ([]model.PaymentEvent, error) {
	query := `
		SELECT id, wallet_address, receipt_id, network, chain_id,
		       block_explorer, block_number, tx_hash, used, created_at
		FROM payment_events
		WHERE collection = $1`
	args := []any{collection}

	if q.WalletAddress != "" {
		args = append(args, q.WalletAddress)
		query += fmt.Sprintf(" AND wallet_address = $%d", len(args))
	}
	if q.TxHash != "" {
		args = append(args, q.TxHash)
		query += fmt.Sprintf(" AND tx_hash = $%d", len(args))
	}
	if q.BlockNumber != 0 {
		args = append(args, int64(q.BlockNumber))
		query += fmt.Sprintf(" AND block_number = $%d", len(args))
	}
	query += " ORDER BY block_number, created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payment events: %w", err)
	}
	defer rows.Close()

	var out []model.PaymentEvent
	for rows.Next() {
		var ev model.PaymentEvent
		var chainID, blockNumber int64
		if err := rows.Scan(
			&ev.ID, &ev.WalletAddress, &ev.ReceiptID, &ev.Network, &chainID,
			&ev.BlockExplorer, &blockNumber, &ev.TxHash, &ev.Used, &ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		ev.ChainID = uint64(chainID)
		ev.BlockNumber = uint64(blockNumber)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) PutConsult(ctx context.Context, c model.Consult) error {
	if c.ID == "" {
		return fmt.Errorf("consult id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO consults (id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, c.ID, c, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put consult: %w", err)
	}
	return nil
}

func (s *Store) GetConsult(ctx context.Context, id string) (model.Consult, error) {
	var c model.Consult
	row := s.pool.QueryRow(ctx, `SELECT doc FROM consults WHERE id = $1`, id)
	if err := row.Scan(&c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Consult{}, store.ErrNotFound
		}
		return model.Consult{}, fmt.Errorf("get consult: %w", err)
	}
	return c, nil
}

func (s *Store) PutMint(ctx context.Context, m model.MintRecord) error {
	id := m.ID
	if id == "" {
		id = uuid.NewString()
		m.ID = id
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mints (id, consult_id, receipt_id, doc, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, m.ConsultID, m.ReceiptID, m, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("put mint: %w", err)
	}
	return nil
}

func (s *Store) PutWebhook(ctx context.Context, w model.WebhookAudit) error {
	id := w.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhooks (id, chain, event_type, payload, processing_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, w.Chain, w.EventType, w.Payload, w.ProcessingError, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("put webhook: %w", err)
	}
	return nil
}
