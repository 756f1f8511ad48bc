// Package testutil holds shared helpers for package tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/timecapsule/timecapsule/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// Postgres is a disposable PostgreSQL container.
type Postgres struct {
	DSN       string
	container tc.Container
}

// StartPostgres launches a postgres:15-alpine container and waits until it accepts connections.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "timecapsule_test",
			},
			// The entrypoint restarts the server once after init.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("container port: %w", err)
	}

	return &Postgres{
		DSN:       fmt.Sprintf("postgres://postgres:password@%s:%s/timecapsule_test?sslmode=disable", host, port.Port()),
		container: container,
	}, nil
}

// Terminate stops and removes the container.
func (p *Postgres) Terminate(ctx context.Context) error {
	return p.container.Terminate(ctx)
}

// TruncateAll empties every application table.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `TRUNCATE TABLE capsules, users`); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a user with a unique email.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	id := ulid.Make().String()
	return &model.User{
		ID:           id,
		Name:         "Test User",
		Email:        fmt.Sprintf("user-%s@example.com", id),
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestCapsule creates a capsule for the owner opening at openDate.
func NewTestCapsule(t testing.TB, ownerID string, openDate time.Time) *model.Capsule {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Capsule{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Title:     "Carta para o futuro",
		Content:   "Espero que tudo esteja bem.",
		OpenDate:  openDate.UTC().Truncate(time.Microsecond),
		Category:  model.CategoryPersonal,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
