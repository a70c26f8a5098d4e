//go:build integration

package database_test

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quantmemo/memocore/pkg/config"
	"github.com/quantmemo/memocore/pkg/database"
)

// newTestDatabaseConfig spins up a real Postgres instance — a CI-supplied
// one via CI_DATABASE_URL, or a fresh testcontainer locally — and returns
// the config.DatabaseConfig pointing at it. Grounded on the teacher's
// test/database/client.go NewTestClient, simplified: this core has no Ent
// schema to create per test, so the embedded golang-migrate migrations
// that database.NewClient already runs are the only schema setup needed.
func newTestDatabaseConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	if dsn := os.Getenv("CI_DATABASE_URL"); dsn != "" {
		t.Log("using external PostgreSQL from CI_DATABASE_URL")
		return parseDSN(t, dsn)
	}

	t.Log("starting PostgreSQL testcontainer")
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("memocore_test"),
		postgres.WithUsername("memocore"),
		postgres.WithPassword("memocore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return parseDSN(t, connStr)
}

func parseDSN(t *testing.T, dsn string) config.DatabaseConfig {
	t.Helper()
	u, err := url.Parse(dsn)
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	password, _ := u.User.Password()
	return config.DatabaseConfig{
		Host:         u.Hostname(),
		Port:         port,
		User:         u.User.Username(),
		Password:     password,
		Name:         u.Path[1:],
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
}

func TestNewClient_AppliesMigrationsAndReportsHealthy(t *testing.T) {
	cfg := newTestDatabaseConfig(t)
	ctx := context.Background()

	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	health, err := client.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, "healthy", health.Status)

	var tableCount int
	row := client.Pool.QueryRow(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name IN ('tasks', 'ai_reports', 'quota_state')`)
	require.NoError(t, row.Scan(&tableCount))
	require.Equal(t, 3, tableCount, "all three migrated tables must exist")
}
