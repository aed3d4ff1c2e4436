package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/code-payments/phonelist-server/pkg/database/postgres"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/pointer"
)

const (
	tableName = "phonelist__documents"
)

type model struct {
	Name          string    `db:"name"`
	Content       string    `db:"content"`
	Version       int64     `db:"version"`
	Description   string    `db:"description"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(name string, items []string, description string) (*model, error) {
	content, err := document.Encode(items)
	if err != nil {
		return nil, err
	}

	return &model{
		Name:          name,
		Content:       string(content),
		Description:   description,
		LastUpdatedAt: time.Now(),
	}, nil
}

func fromModel(obj *model) (*document.Document, error) {
	items, err := document.Decode([]byte(obj.Content))
	if err != nil {
		return nil, err
	}

	return &document.Document{
		Name:    obj.Name,
		Items:   items,
		Version: pointer.String(strconv.FormatInt(obj.Version, 10)),
	}, nil
}

// dbCreate inserts the document, provided no row exists for its name. False is
// returned if the row already exists.
func (m *model) dbCreate(ctx context.Context, db *sqlx.DB) (bool, error) {
	query := `INSERT INTO ` + tableName + `
		(name, content, version, description, last_updated_at)
		VALUES ($1, $2, 1, $3, $4)

		ON CONFLICT (name) DO NOTHING

		RETURNING name, content, version, description, last_updated_at
	`

	err := db.QueryRowxContext(
		ctx,
		query,
		m.Name,
		m.Content,
		m.Description,
		m.LastUpdatedAt.UTC(),
	).StructScan(m)
	if pgutil.IsNoRows(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// dbUpdate replaces the document's content, provided its version still matches
// expectedVersion. False is returned if the version has changed, or the row
// doesn't exist.
func (m *model) dbUpdate(ctx context.Context, db *sqlx.DB, expectedVersion int64) (bool, error) {
	query := `UPDATE ` + tableName + `
		SET content = $2, version = version + 1, description = $3, last_updated_at = $4
		WHERE name = $1 AND version = $5

		RETURNING name, content, version, description, last_updated_at
	`

	err := db.QueryRowxContext(
		ctx,
		query,
		m.Name,
		m.Content,
		m.Description,
		m.LastUpdatedAt.UTC(),
		expectedVersion,
	).StructScan(m)
	if pgutil.IsNoRows(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func dbGet(ctx context.Context, db *sqlx.DB, name string) (*model, error) {
	res := &model{}

	query := `SELECT name, content, version, description, last_updated_at FROM ` + tableName + `
		WHERE name = $1`

	err := db.GetContext(
		ctx,
		res,
		query,
		name,
	)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, document.ErrDocumentNotFound)
	}
	return res, nil
}
