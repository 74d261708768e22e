package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection before handing the
// pool to the store gateway.  maxConns bounds open and idle connections
// alike; booking transactions are short-lived, so a saturated pool signals
// contention rather than a need for more connections.
func Open(ctx context.Context, user, pass, host, port, name string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// dsn builds the connection string.  parseTime scans DATETIME columns into
// time.Time and loc=UTC keeps every scanned timestamp in UTC; the
// booking-group fingerprint compares expires_at values and would break on
// mixed locations.
func dsn(user, pass, host, port, name string) string {
	auth := user
	if pass != "" {
		auth = user + ":" + pass
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)
}
