// Package dbtest starts a throwaway PostgreSQL container with the schema
// applied, for store integration tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"teacherhr/internal/platform/db"
	"teacherhr/migrations"
)

const image = "postgres:16-alpine"

// Postgres returns a migrated pool backed by a fresh container. The test is
// skipped in -short mode; the container is removed when the test ends.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, PostgresURL(t))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// PostgresURL starts an empty database container and returns its DSN. No
// migrations are applied.
func PostgresURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "teacherhr",
			"POSTGRES_PASSWORD": "teacherhr",
			"POSTGRES_DB":       "teacherhr",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	ctr, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://teacherhr:teacherhr@%s:%s/teacherhr?sslmode=disable", host, port.Port())
}

// Teacher inserts a department-less teacher and returns its id.
func Teacher(t *testing.T, pool *pgxpool.Pool, employeeID, name string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
    INSERT INTO teachers (employee_id, full_name, email)
    VALUES ($1, $2, $1 || '@school.test')
    RETURNING id
  `, employeeID, name).Scan(&id)
	if err != nil {
		t.Fatalf("insert teacher: %v", err)
	}
	return id
}

// User inserts a login for role and returns its id.
func User(t *testing.T, pool *pgxpool.Pool, email, role string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
    INSERT INTO users (email, password_hash, full_name, role)
    VALUES ($1, 'x', $1, $2)
    RETURNING id
  `, email, role).Scan(&id)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}
