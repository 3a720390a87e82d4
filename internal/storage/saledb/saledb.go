package saledb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/openmrkt/marketd/internal/core/currency"
	"github.com/openmrkt/marketd/internal/core/market"
)

var ErrClosed = errors.New("saledb: database is closed")

// SaleKind distinguishes how a sale concluded.
type SaleKind string

const (
	SaleFixedPrice SaleKind = "fixed_price"
	SaleAuction    SaleKind = "auction"
)

// SaleRecord is one completed sale with its settlement breakdown. All amounts
// are in base units; Fee + Royalty + SellerNet == Gross.
type SaleRecord struct {
	ID         int64
	Kind       SaleKind
	Collection string
	TokenID    string
	Seller     market.AccountID
	Buyer      market.AccountID
	Gross      currency.Amount
	Fee        currency.Amount
	Royalty    currency.Amount
	SellerNet  currency.Amount
	OccurredAt time.Time
}

// EventRecord is one journaled engine event.
type EventRecord struct {
	ID         int64
	Type       string
	Payload    json.RawMessage
	OccurredAt time.Time
}

// SaleQuery filters history lookups. Zero fields match everything.
type SaleQuery struct {
	Collection string
	TokenID    string
	Seller     market.AccountID
	Limit      int
}

// Store is the relational sale and event history.
type Store struct {
	cfg Config
	db  *sql.DB
}

func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{cfg: cfg}, nil
}

// Open connects and initializes the schema.
func (s *Store) Open(ctx context.Context) error {
	db, err := sql.Open(s.cfg.Driver, s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("saledb: open: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.DefaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("saledb: ping: %w", err)
	}

	s.db = db
	if err := s.initSchema(ctx); err != nil {
		s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) initSchema(ctx context.Context) error {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.cfg.Driver == DriverPostgres {
		idCol = "BIGSERIAL PRIMARY KEY"
	}

	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sales (
			id %s,
			kind TEXT NOT NULL,
			collection TEXT NOT NULL,
			token_id TEXT NOT NULL,
			seller TEXT NOT NULL,
			buyer TEXT NOT NULL,
			gross BIGINT NOT NULL,
			fee BIGINT NOT NULL,
			royalty BIGINT NOT NULL,
			seller_net BIGINT NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		)`, idCol),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS events (
			id %s,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		)`, idCol),

		`CREATE INDEX IF NOT EXISTS idx_sales_asset ON sales(collection, token_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_seller ON sales(seller)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_occurred ON sales(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("saledb: init schema: %w", err)
		}
	}
	return nil
}

// rebind converts ? placeholders to the $n form postgres expects.
func (s *Store) rebind(query string) string {
	if s.cfg.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecordSale inserts one completed sale.
func (s *Store) RecordSale(ctx context.Context, rec SaleRecord) error {
	if s.db == nil {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DefaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO sales (kind, collection, token_id, seller, buyer, gross, fee, royalty, seller_net, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		string(rec.Kind), rec.Collection, rec.TokenID,
		string(rec.Seller), string(rec.Buyer),
		int64(rec.Gross), int64(rec.Fee), int64(rec.Royalty), int64(rec.SellerNet),
		rec.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("saledb: record sale: %w", err)
	}
	return nil
}

// RecordEvent journals one engine event as JSON.
func (s *Store) RecordEvent(ctx context.Context, eventType string, payload interface{}, at time.Time) error {
	if s.db == nil {
		return ErrClosed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("saledb: marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DefaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO events (event_type, payload, occurred_at) VALUES (?, ?, ?)`),
		eventType, string(body), at.UTC())
	if err != nil {
		return fmt.Errorf("saledb: record event: %w", err)
	}
	return nil
}

// Sales returns history matching the query, newest first.
func (s *Store) Sales(ctx context.Context, q SaleQuery) ([]SaleRecord, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	query := `SELECT id, kind, collection, token_id, seller, buyer, gross, fee, royalty, seller_net, occurred_at FROM sales`
	var conds []string
	var args []interface{}
	if q.Collection != "" {
		conds = append(conds, "collection = ?")
		args = append(args, q.Collection)
	}
	if q.TokenID != "" {
		conds = append(conds, "token_id = ?")
		args = append(args, q.TokenID)
	}
	if q.Seller != "" {
		conds = append(conds, "seller = ?")
		args = append(args, string(q.Seller))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DefaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("saledb: query sales: %w", err)
	}
	defer rows.Close()

	var out []SaleRecord
	for rows.Next() {
		var rec SaleRecord
		var kind, seller, buyer string
		var gross, fee, royalty, net int64
		if err := rows.Scan(&rec.ID, &kind, &rec.Collection, &rec.TokenID,
			&seller, &buyer, &gross, &fee, &royalty, &net, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("saledb: scan sale: %w", err)
		}
		rec.Kind = SaleKind(kind)
		rec.Seller = market.AccountID(seller)
		rec.Buyer = market.AccountID(buyer)
		rec.Gross = currency.Amount(gross)
		rec.Fee = currency.Amount(fee)
		rec.Royalty = currency.Amount(royalty)
		rec.SellerNet = currency.Amount(net)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaleCount returns the number of recorded sales.
func (s *Store) SaleCount(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&count)
	return count, err
}

// Events returns the newest journaled events, up to limit.
func (s *Store) Events(ctx context.Context, limit int) ([]EventRecord, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	query := `SELECT id, event_type, payload, occurred_at FROM events ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DefaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("saledb: query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.Type, &payload, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("saledb: scan event: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}
