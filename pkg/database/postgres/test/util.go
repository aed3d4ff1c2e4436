// Package test runs a disposable postgres container for store tests.
package test

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/code-payments/phonelist-server/pkg/retry"
	"github.com/code-payments/phonelist-server/pkg/retry/backoff"
)

const (
	imageName = "postgres"
	imageTag  = "16-alpine"

	containerAutoKill = 120 * time.Second
	readyTimeout      = 30 * time.Second

	user     = "phonelist"
	password = "phonelist"
	dbName   = "phonelist_test"
)

// StartPostgresDB starts a postgres container and returns a connection pool to
// its database once it accepts connections. closeFunc closes the pool and
// purges the container, and is always safe to call.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: imageName,
		Tag:        imageTag,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbName,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to start postgres container")
	}

	// Expire() never returns an error
	_ = resource.Expire(uint(containerAutoKill.Seconds()))

	log := logrus.StandardLogger().WithField("method", "StartPostgresDB")
	closeFunc = func() {
		if db != nil {
			_ = db.Close()
		}
		if err := pool.Purge(resource); err != nil {
			log.WithError(err).Error("failed to cleanup postgres resource")
		}
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		user,
		password,
		resource.GetHostPort("5432/tcp"),
		dbName,
	)
	db, err = sql.Open("pgx", dsn)
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to open postgres connection")
	}

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	_, err = retry.Retry(
		ctx,
		func(ctx context.Context, _ uint) error {
			return db.PingContext(ctx)
		},
		retry.Backoff(backoff.Linear(100*time.Millisecond), 500*time.Millisecond),
	)
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "timed out waiting for postgres container")
	}

	return db, closeFunc, nil
}
