package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/pointer"

	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"

	tableName = "phonelist__documents"

	Schema = `
	CREATE TABLE IF NOT EXISTS phonelist__documents (
		name TEXT NOT NULL PRIMARY KEY,
		content TEXT NOT NULL,
		version INTEGER NOT NULL CHECK (version > 0),
		description TEXT NOT NULL,
		last_updated_at TIMESTAMP NOT NULL
	);
	`
)

type model struct {
	Content string `db:"content"`
	Version int64  `db:"version"`
}

type store struct {
	db *sqlx.DB
}

// Open opens the SQLite database at path and ensures the schema exists. Use
// ":memory:" for a database that lives as long as the returned handle.
//
// SQLite has a single writer, so the pool is limited to one connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "error opening sqlite database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "error creating sqlite schema")
	}
	return db, nil
}

// New returns a document.Store with one row per document in a SQLite database.
// The document version is a counter incremented on every write.
func New(db *sql.DB) document.Store {
	return &store{
		db: sqlx.NewDb(db, driverName),
	}
}

// Read implements document.Store.Read
func (s *store) Read(ctx context.Context, name string) (*document.Document, error) {
	var m model
	err := s.db.GetContext(
		ctx,
		&m,
		`SELECT content, version FROM `+tableName+` WHERE name = ?`,
		name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &document.Document{
			Name:  name,
			Items: []string{},
		}, nil
	} else if err != nil {
		return nil, document.NewStoreError("read", name, err)
	}

	items, err := document.Decode([]byte(m.Content))
	if err != nil {
		return nil, document.NewStoreError("read", name, err)
	}

	return &document.Document{
		Name:    name,
		Items:   items,
		Version: pointer.String(strconv.FormatInt(m.Version, 10)),
	}, nil
}

// Write implements document.Store.Write
func (s *store) Write(ctx context.Context, name string, items []string, expectedVersion *string, description string) (string, error) {
	content, err := document.Encode(items)
	if err != nil {
		return "", document.NewStoreError("write", name, err)
	}

	now := time.Now().UTC()

	var result sql.Result
	var newVersion int64
	if expectedVersion == nil {
		newVersion = 1
		result, err = s.db.ExecContext(
			ctx,
			`INSERT INTO `+tableName+` (name, content, version, description, last_updated_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT (name) DO NOTHING`,
			name,
			string(content),
			description,
			now,
		)
	} else {
		version, parseErr := strconv.ParseInt(*expectedVersion, 10, 64)
		if parseErr != nil {
			return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
		}

		newVersion = version + 1
		result, err = s.db.ExecContext(
			ctx,
			`UPDATE `+tableName+`
			SET content = ?, version = version + 1, description = ?, last_updated_at = ?
			WHERE name = ? AND version = ?`,
			string(content),
			description,
			now,
			name,
			version,
		)
	}
	if err != nil {
		return "", document.NewStoreError("write", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return "", document.NewStoreError("write", name, err)
	}
	if affected == 0 {
		return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
	}

	return strconv.FormatInt(newVersion, 10), nil
}
