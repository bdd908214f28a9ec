package db

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

var (
	newPool = func(ctx context.Context, url string) (*pgxpool.Pool, error) {
		return pgxpool.New(ctx, url)
	}
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

// InitPostgres connects the package-level pool. A missing DATABASE_URL is
// tolerated so read-only tooling can run without a database.
func InitPostgres(ctx context.Context) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		log.Println("DATABASE_URL not set, skipping Postgres connection")
		return
	}

	pool, err := newPool(ctx, url)
	if err != nil {
		log.Fatalf("failed to create Postgres pool: %v", err)
	}
	if err := pingPool(ctx, pool); err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	Pool = pool
	log.Println("Connected to Postgres")
}
