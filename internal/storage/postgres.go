package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/product-crawler/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id            BIGSERIAL PRIMARY KEY,
	title         TEXT NOT NULL UNIQUE,
	url           TEXT NOT NULL,
	crawl_name    TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	price         TEXT NOT NULL,
	rating        NUMERIC(2,1),
	ratings_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS product_categories (
	product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	name       TEXT NOT NULL,
	PRIMARY KEY (product_id, position)
);
CREATE TABLE IF NOT EXISTS product_features (
	product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	feature    TEXT NOT NULL,
	PRIMARY KEY (product_id, position)
);`

// PostgresStore mirrors written product records into PostgreSQL.
type PostgresStore struct {
	db        *pgxpool.Pool
	crawlName string
	runID     string
}

// NewPostgresStore connects and makes sure the schema exists. Records are
// tagged with crawlName and runID.
func NewPostgresStore(ctx context.Context, connStr, crawlName, runID string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{db: db, crawlName: crawlName, runID: runID}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// SaveProduct upserts one record and replaces its categories and features
// within a single transaction.
func (s *PostgresStore) SaveProduct(ctx context.Context, p *domain.Product) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var rating *float64
	if p.Rating.Rated {
		rating = &p.Rating.Stars
	}

	var productID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO products (title, url, crawl_name, run_id, price, rating, ratings_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (title) DO UPDATE SET
		   url = EXCLUDED.url, crawl_name = EXCLUDED.crawl_name, run_id = EXCLUDED.run_id,
		   price = EXCLUDED.price, rating = EXCLUDED.rating, ratings_count = EXCLUDED.ratings_count,
		   updated_at = NOW()
		 RETURNING id`,
		p.Title, p.URL, s.crawlName, s.runID, p.Price, rating, p.RatingsCount,
	).Scan(&productID)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM product_categories WHERE product_id = $1`, productID)
	batch.Queue(`DELETE FROM product_features WHERE product_id = $1`, productID)
	for i, name := range p.CategoryList {
		batch.Queue(`INSERT INTO product_categories (product_id, position, name) VALUES ($1, $2, $3)`,
			productID, i, name)
	}
	for i, feature := range p.Features {
		batch.Queue(`INSERT INTO product_features (product_id, position, feature) VALUES ($1, $2, $3)`,
			productID, i, feature)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CountProducts returns the number of records mirrored by the current run.
func (s *PostgresStore) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE run_id = $1`, s.runID).Scan(&n)
	return n, err
}
