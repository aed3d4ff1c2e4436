package pg

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

type Config struct {
	User               string
	Host               string
	Password           string
	Port               int
	DbName             string
	SslMode            string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// DSN returns the connection url for the config
func (c *Config) DSN() string {
	sslMode := c.SslMode
	if len(sslMode) == 0 {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DbName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// New gets a DB connection pool using username/password credentials. Queries
// are instrumented with New Relic through the nrpgx driver.
func New(ctx context.Context, config *Config) (*sql.DB, error) {
	if len(config.Host) == 0 || len(config.DbName) == 0 {
		return nil, errors.New("postgres host and database name are required")
	}

	// Try to open a connection pool using the "nrpgx" driver (instead of "postgres")
	db, err := sql.Open("nrpgx", config.DSN())
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// Check if the connection was successful
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error connecting to postgres")
	}

	return db, nil
}
