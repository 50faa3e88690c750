package mysql

import (
	"database/sql"
	"fmt"

	drv "github.com/go-sql-driver/mysql"
)

// NormalizeDSN makes sure DATETIME columns scan into time.Time, whatever the
// operator put in MYSQL_DSN.
func NormalizeDSN(dsn string) (*drv.Config, error) {
	cfg, err := drv.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

// Open returns a pool for the audit journal; the caller pings and closes it.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := drv.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(conn), nil
}
