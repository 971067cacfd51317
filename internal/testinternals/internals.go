package testinternals

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/2beens/contenthub/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// TestPasswordHash is the bcrypt hash of TestPassword.
const (
	TestPassword     = "testpass"
	TestPasswordHash = "$2a$14$6Gmhg85si2etd3K9oB8nYu1cxfbrdmhkg6wI6OXsa88IF4L2r/L9i"
)

// NewTestDBPool connects to the postgres used by integration tests
// (POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB), migrates it and wipes the auth tables.
func NewTestDBPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	params := db.NewDBPoolParams{
		DBHost:         envOr("POSTGRES_HOST", "localhost"),
		DBPort:         envOr("POSTGRES_PORT", "5432"),
		DBName:         envOr("POSTGRES_DB", "contenthub_test"),
		DBPassword:     os.Getenv("POSTGRES_PASS"),
		TracingEnabled: false,
	}
	t.Logf("using postgres: %s:%s/%s", params.DBHost, params.DBPort, params.DBName)

	require.NoError(t, db.RunMigrations(params.ConnString()))

	dbPool, err := db.NewDBPool(timeoutCtx, params)
	require.NoError(t, err)
	require.NoError(t, dbPool.Ping(timeoutCtx))

	_, err = dbPool.Exec(timeoutCtx, `DELETE FROM verification_code; DELETE FROM admin;`)
	require.NoError(t, err)

	t.Cleanup(dbPool.Close)
	return dbPool
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
