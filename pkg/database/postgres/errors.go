package pg

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// CheckNoRows translates sql.ErrNoRows into outErr, passing through any other
// error unmodified
func CheckNoRows(inErr, outErr error) error {
	if IsNoRows(inErr) {
		return outErr
	}
	return inErr
}

func IsNoRows(err error) bool {
	return err != nil && errors.Is(err, sql.ErrNoRows)
}

// IsSerializationFailure returns whether err is a retryable serialization failure
func IsSerializationFailure(err error) bool {
	return hasCode(err, pgerrcode.SerializationFailure)
}

// IsUndefinedTable returns whether err indicates the schema hasn't been created
func IsUndefinedTable(err error) bool {
	return hasCode(err, pgerrcode.UndefinedTable)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
