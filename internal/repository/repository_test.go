package repository

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		fmt.Println("TEST_DATABASE_URL not set, skipping integration tests")
		os.Exit(0)
	}

	var err error
	testPool, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	defer testPool.Close()

	os.Exit(m.Run())
}

// cleanupTables wipes the given tables in order; callers list children
// before parents so foreign keys do not get in the way.
func cleanupTables(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := testPool.Exec(context.Background(), "DELETE FROM "+table); err != nil {
			t.Fatalf("failed to clean table %s: %v", table, err)
		}
	}
}

// cleanupAll resets every table touched by the integration tests.
func cleanupAll(t *testing.T) {
	t.Helper()
	cleanupTables(t,
		"reviews", "cart_items", "carts", "orders", "order_counters",
		"promotions", "product_variants", "products", "categories", "users",
	)
}
