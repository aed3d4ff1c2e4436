package main

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	v3 "go.etcd.io/etcd/client/v3"

	pg "github.com/code-payments/phonelist-server/pkg/database/postgres"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	etcd_store "github.com/code-payments/phonelist-server/pkg/phonelist/document/etcd"
	github_store "github.com/code-payments/phonelist-server/pkg/phonelist/document/github"
	memory_store "github.com/code-payments/phonelist-server/pkg/phonelist/document/memory"
	postgres_store "github.com/code-payments/phonelist-server/pkg/phonelist/document/postgres"
	s3_store "github.com/code-payments/phonelist-server/pkg/phonelist/document/s3"
	sqlite_store "github.com/code-payments/phonelist-server/pkg/phonelist/document/sqlite"
)

const (
	driverGithub   = "github"
	driverEtcd     = "etcd"
	driverS3       = "s3"
	driverPostgres = "postgres"
	driverSqlite   = "sqlite"
	driverMemory   = "memory"
)

// newStore builds the document store named by the driver config. The returned
// closer releases any connections held by the store.
func newStore(ctx context.Context, c *conf) (document.Store, func(), error) {
	noop := func() {}

	driver := strings.ToLower(strings.TrimSpace(c.storeDriver.Get(ctx)))
	switch driver {
	case driverGithub:
		return github_store.New(github_store.WithEnvConfigs()), noop, nil

	case driverMemory:
		return memory_store.New(), noop, nil

	case driverEtcd:
		endpoints := splitEndpoints(c.etcdEndpoints.Get(ctx))
		if len(endpoints) == 0 {
			return nil, nil, errors.Wrap(document.ErrNotConfigured, "etcd endpoints are required")
		}

		client, err := v3.New(v3.Config{
			Endpoints:   endpoints,
			DialTimeout: c.etcdDialTimeout.Get(ctx),
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "error creating etcd client")
		}

		closeFunc := func() {
			_ = client.Close()
		}
		return etcd_store.New(client, c.etcdKeyPrefix.Get(ctx)), closeFunc, nil

	case driverS3:
		store, err := s3_store.New(ctx, s3_store.Config{
			Bucket:          c.s3Bucket.Get(ctx),
			Region:          c.s3Region.Get(ctx),
			Endpoint:        c.s3Endpoint.Get(ctx),
			AccessKeyID:     c.s3AccessKeyId.Get(ctx),
			SecretAccessKey: c.s3SecretAccessKey.Get(ctx),
			PathStyle:       c.s3PathStyle.Get(ctx),
		})
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case driverPostgres:
		db, err := pg.New(ctx, &pg.Config{
			Host:               c.postgresHost.Get(ctx),
			Port:               int(c.postgresPort.Get(ctx)),
			User:               c.postgresUser.Get(ctx),
			Password:           c.postgresPassword.Get(ctx),
			DbName:             c.postgresDbName.Get(ctx),
			SslMode:            c.postgresSslMode.Get(ctx),
			MaxOpenConnections: int(c.postgresMaxOpenConns.Get(ctx)),
			MaxIdleConnections: int(c.postgresMaxIdleConns.Get(ctx)),
			ConnMaxLifetime:    time.Hour,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "error connecting to postgres")
		}

		closeFunc := func() {
			_ = db.Close()
		}

		if c.postgresAutoMigrate.Get(ctx) {
			if err := migrate(ctx, db); err != nil {
				closeFunc()
				return nil, nil, err
			}
		}
		return postgres_store.New(db), closeFunc, nil

	case driverSqlite:
		path := strings.TrimSpace(c.sqlitePath.Get(ctx))
		if len(path) == 0 {
			return nil, nil, errors.Wrap(document.ErrNotConfigured, "sqlite path is required")
		}

		db, err := sqlite_store.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}

		closeFunc := func() {
			_ = db.Close()
		}
		return sqlite_store.New(db), closeFunc, nil
	}

	return nil, nil, errors.Errorf("unsupported document store driver: %q", driver)
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, postgres_store.Schema); err != nil {
		return errors.Wrap(err, "error creating postgres schema")
	}
	return nil
}
