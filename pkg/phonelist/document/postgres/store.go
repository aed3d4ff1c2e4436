package postgres

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	pgutil "github.com/code-payments/phonelist-server/pkg/database/postgres"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
)

const (
	// Used to bootstrap environments without external migrations
	Schema = `
	CREATE TABLE IF NOT EXISTS phonelist__documents (
		name TEXT NOT NULL PRIMARY KEY,
		content TEXT NOT NULL,
		version BIGINT NOT NULL,
		description TEXT NOT NULL,
		last_updated_at TIMESTAMP WITH TIME ZONE NOT NULL,

		CONSTRAINT phonelist__documents__version CHECK (version > 0)
	);
	`
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres document.Store, with one row per document. The
// document version is a counter incremented on every write.
func New(db *sql.DB) document.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Read implements document.Store.Read
func (s *store) Read(ctx context.Context, name string) (*document.Document, error) {
	var m *model
	err := pgutil.ExecuteRetryable(func() (err error) {
		m, err = dbGet(ctx, s.db, name)
		return err
	})
	if err == document.ErrDocumentNotFound {
		return &document.Document{
			Name:  name,
			Items: []string{},
		}, nil
	} else if err != nil {
		return nil, toStoreError("read", name, err)
	}

	res, err := fromModel(m)
	if err != nil {
		return nil, document.NewStoreError("read", name, err)
	}
	return res, nil
}

// Write implements document.Store.Write
func (s *store) Write(ctx context.Context, name string, items []string, expectedVersion *string, description string) (string, error) {
	m, err := toModel(name, items, description)
	if err != nil {
		return "", document.NewStoreError("write", name, err)
	}

	var applied bool
	if expectedVersion == nil {
		err = pgutil.ExecuteRetryable(func() (err error) {
			applied, err = m.dbCreate(ctx, s.db)
			return err
		})
	} else {
		version, parseErr := strconv.ParseInt(*expectedVersion, 10, 64)
		if parseErr != nil {
			return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
		}

		err = pgutil.ExecuteRetryable(func() (err error) {
			applied, err = m.dbUpdate(ctx, s.db, version)
			return err
		})
	}
	if err != nil {
		return "", toStoreError("write", name, err)
	}

	if !applied {
		return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
	}
	return strconv.FormatInt(m.Version, 10), nil
}

// toStoreError reports a missing schema as the store not being configured
func toStoreError(op, name string, err error) error {
	if pgutil.IsUndefinedTable(err) {
		return errors.Wrap(document.ErrNotConfigured, "phonelist__documents table doesn't exist")
	}
	return document.NewStoreError(op, name, err)
}
