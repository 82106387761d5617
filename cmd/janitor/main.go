package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Scheduled cleanup for deployments on the Postgres queue store: members who
// have been waiting for months are long gone from the server.
func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := pool.Exec(cctx, `DELETE FROM queue_entries WHERE updated_at < now() - INTERVAL '90 days';`)
	if err != nil {
		return fmt.Sprintf("prune: %v", err), nil
	}
	return fmt.Sprintf("ok, pruned %d", tag.RowsAffected()), nil
}

func main() { lambda.Start(handler) }
