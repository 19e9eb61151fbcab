package health

import (
	"context"
	"database/sql"
	"errors"
)

// DBChecker checks the Postgres connection backing the tour repository.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if d.db == nil {
		return errors.New("database not configured")
	}
	return d.db.PingContext(ctx)
}
