//go:build integration

package postgres

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"
)

var testPool *pgxpool.Pool

// TestMain connects to TEST_DATABASE_URL, e.g. a throwaway container started with
// docker run --rm -e POSTGRES_PASSWORD=password -p 5432:5432 postgres:14
func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		log.Println("TEST_DATABASE_URL not set, skipping postgres integration tests")
		os.Exit(0)
	}
	ctx := context.Background()
	var err error
	testPool, err = Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("Unable to connect to test database: %v", err)
	}
	if _, err := testPool.Exec(ctx, createDocumentsTable); err != nil {
		log.Fatalf("could not apply schema: %s", err)
	}

	exitCode := m.Run()

	testPool.Close()
	os.Exit(exitCode)
}

func cleanup(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), `TRUNCATE bot_documents`); err != nil {
		t.Fatalf("Failed to clean up database: %v", err)
	}
}
