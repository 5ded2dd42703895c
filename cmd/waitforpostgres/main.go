package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
)

func main() {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "TEST_POSTGRES_DSN or DATABASE_URL is required")
		os.Exit(2)
	}

	timeout := 60 * time.Second
	if raw := os.Getenv("WAIT_FOR_POSTGRES_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			fmt.Fprintf(os.Stderr, "invalid WAIT_FOR_POSTGRES_TIMEOUT: %q\n", raw)
			os.Exit(2)
		}
		timeout = d
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open postgres: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := waitFor(context.Background(), db.PingContext, timeout); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready within %s: %v\n", timeout, err)
		os.Exit(1)
	}
	fmt.Println("postgres ready")
}

// waitFor retries ping with exponential backoff until it succeeds or timeout
// elapses.
func waitFor(ctx context.Context, ping func(context.Context) error, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout

	return backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return ping(attemptCtx)
	}, backoff.WithContext(b, ctx))
}
