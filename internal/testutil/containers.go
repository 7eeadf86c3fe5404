package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer represents a PostgreSQL container for testing
type PostgresContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
	User      string
	Password  string
	Database  string
}

// NewPostgresContainer creates and starts a PostgreSQL container with pgvector
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:0.8.1-pg18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "convoca",
			"POSTGRES_PASSWORD": "convoca",
			"POSTGRES_DB":       "convoca",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to create postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		Host:      host,
		Port:      port.Port(),
		User:      "convoca",
		Password:  "convoca",
		Database:  "convoca",
	}
}

// ConnectionString returns the PostgreSQL connection string
func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pc.User, pc.Password, pc.Host, pc.Port, pc.Database)
}

// Terminate stops and removes the container
func (pc *PostgresContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(pc.Container)
}

// grantSchema mirrors the tables owned by the ingestion pipeline plus
// the query_logs table this service writes. The embedding dimension is
// kept small so fixtures stay readable.
const grantSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS grants (
	id                BIGSERIAL PRIMARY KEY,
	bdns_code         TEXT NOT NULL UNIQUE,
	organization      TEXT NOT NULL,
	is_open           BOOLEAN NOT NULL DEFAULT FALSE,
	regions           TEXT[] NOT NULL DEFAULT '{}',
	beneficiary_types TEXT[] NOT NULL DEFAULT '{}',
	application_start TIMESTAMPTZ,
	application_end   TIMESTAMPTZ,
	budget            DOUBLE PRECISION,
	sector            TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL,
	summary           TEXT NOT NULL DEFAULT '',
	published_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS grant_embeddings (
	grant_id   BIGINT PRIMARY KEY REFERENCES grants(id) ON DELETE CASCADE,
	embedding  VECTOR(4) NOT NULL,
	model_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS query_logs (
	id          BIGSERIAL PRIMARY KEY,
	session_id  TEXT,
	message     TEXT NOT NULL,
	intent      TEXT NOT NULL,
	total_found INT NOT NULL,
	model_used  TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	complexity  INT NOT NULL,
	latency_ms  INT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// NewTestPool creates a pgxpool connected to the test container and applies the schema
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	var pool *pgxpool.Pool
	var err error
	for i := 0; i < 5; i++ {
		pool, err = pgxpool.New(ctx, pc.ConnectionString())
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				break
			}
			pool.Close()
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to create pool after retries: %v", err)
	}

	if _, err := pool.Exec(ctx, grantSchema); err != nil {
		pool.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	return pool
}

// TruncateAll truncates all tables in the database for test isolation
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	tables := []string{
		"query_logs",
		"grant_embeddings",
		"grants",
	}

	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	return nil
}
