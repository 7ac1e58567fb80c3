//go:build integration

package testinfra

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iliyamo/sneak-radar/internal/database"
)

const (
	DefaultMySQLImage = "mysql:8.0"
	mysqlPort         = "3306/tcp"
	mysqlUser         = "sneak"
	mysqlPassword     = "sneak"
	mysqlDatabase     = "sneak_test"
)

// SkipIfNoDocker skips the test when no Docker daemon answers.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// MySQLContainer is a MySQL server with the service schema applied.
type MySQLContainer struct {
	testcontainers.Container
	DB *sql.DB
}

// NewMySQLContainer starts MySQL, connects through database.Open and runs
// the migrations.
func NewMySQLContainer(ctx context.Context) (*MySQLContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultMySQLImage,
		ExposedPorts: []string{mysqlPort},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root",
			"MYSQL_DATABASE":      mysqlDatabase,
			"MYSQL_USER":          mysqlUser,
			"MYSQL_PASSWORD":      mysqlPassword,
		},
		// The init server logs "port: 0"; this line is the real server.
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(3 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create mysql container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("mysql host: %w", err)
	}
	port, err := container.MappedPort(ctx, mysqlPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("mysql port: %w", err)
	}

	var db *sql.DB
	deadline := time.Now().Add(30 * time.Second)
	for {
		db, err = database.Open(mysqlUser, mysqlPassword, host, port.Port(), mysqlDatabase)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		container.Terminate(ctx) //nolint:errcheck
		return nil, err
	}
	return &MySQLContainer{Container: container, DB: db}, nil
}

// Reset deletes every row, children first.
func (c *MySQLContainer) Reset(ctx context.Context) error {
	for _, table := range []string{"hints", "cinemas", "cities", "movies", "refresh_tokens", "users"} {
		if _, err := c.DB.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the pool and stops the container.
func (c *MySQLContainer) Close(ctx context.Context) {
	_ = c.DB.Close()
	c.Terminate(ctx) //nolint:errcheck
}
