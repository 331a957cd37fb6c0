package testutil

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/nkiryanov/authsession/internal/db"
)

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

// Fail if docker not found
func requireDocker(t *testing.T) {
	t.Helper()

	cmd := exec.Command("docker", "info", "--format", "{{.ServerVersion}}")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("test failed: docker rootless not available or not running. Err:%s", out)
	}
}

type PostgresContainer struct {
	DSN       string
	Pool      *pgxpool.Pool
	Terminate func()
}

// Start container with postgres
// Stop if error happened, so you may be sure container started ok
// Should be stopped when tests stopped
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()
	requireDocker(t)

	// Run postgres in docker on random port
	port, err := RandomPort()
	require.NoError(t, err, "Error happened when acquiring random port to start postgres")

	container, err := postgres.Run(t.Context(),
		"postgres:17-alpine",
		postgres.WithDatabase("authsession-test"),
		postgres.WithUsername("authsession"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequestOption(func(req *testcontainers.GenericContainerRequest) error {
			req.ExposedPorts = []string{fmt.Sprintf("%d:5432", port)}
			return nil
		}),
	)
	require.NoError(t, err, "Error happened when starting container with postgres, deal with it please")

	dsn, err := container.ConnectionString(t.Context())
	require.NoError(t, err, "Error happened when getting connection string from container with postgres")
	t.Logf("Container with pg started, DSN=%v", dsn)

	// Migrate and request connection pool
	dbpool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "Error happened when connecting to postgres and migrating schema")

	return PostgresContainer{
		DSN:  dsn,
		Pool: dbpool,
		Terminate: func() {
			dbpool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type RedisContainer struct {
	URL       string
	Client    *goredis.Client
	Terminate func()
}

// Start container with redis
// Tests sharing the container should flush it or use distinct subjects
func StartRedisContainer(t *testing.T) RedisContainer {
	t.Helper()
	requireDocker(t)

	container, err := tcredis.Run(t.Context(), "redis:7-alpine")
	require.NoError(t, err, "Error happened when starting container with redis")

	url, err := container.ConnectionString(t.Context())
	require.NoError(t, err, "Error happened when getting connection string from container with redis")
	t.Logf("Container with redis started, URL=%v", url)

	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	require.NoError(t, client.Ping(t.Context()).Err(), "Redis in container does not answer")

	return RedisContainer{
		URL:    url,
		Client: client,
		Terminate: func() {
			_ = client.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type MongoContainer struct {
	URI       string
	Terminate func()
}

// Start container with mongodb
func StartMongoContainer(t *testing.T) MongoContainer {
	t.Helper()
	requireDocker(t)

	container, err := mongodb.Run(t.Context(), "mongo:7")
	require.NoError(t, err, "Error happened when starting container with mongodb")

	uri, err := container.ConnectionString(t.Context())
	require.NoError(t, err, "Error happened when getting connection string from container with mongodb")
	t.Logf("Container with mongodb started, URI=%v", uri)

	return MongoContainer{
		URI: uri,
		Terminate: func() {
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type dbtx interface {
	Begin(context.Context) (pgx.Tx, error)
}

// Create db transaction and rollback at test end
// So you may be sure db remains unchanged when test stops
func WithTx(dbtx dbtx, t *testing.T, testFunc func(tx pgx.Tx)) {
	tx, err := dbtx.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		err := tx.Rollback(t.Context())
		require.NoError(t, err)
	}()

	testFunc(tx)
}
