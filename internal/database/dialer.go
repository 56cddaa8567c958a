package database

import (
	"context"
	"database/sql"

	// Drivers for the supported schema profiles.
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/sirupsen/logrus"

	"github.com/industryvis/historian/internal/apperr"
)

// DatabaseConfig identifies the backing store. Owned by the external
// configuration collaborator and passed by value; the core keeps no
// hidden global connection state.
type DatabaseConfig struct {
	Server   string
	Port     int
	Database string
	Username string
	Password string
}

// SQLDialer dials dedicated database/sql sessions for the pool. Each
// dialed Conn is its own single-connection handle so a checkout maps to
// exactly one server session.
type SQLDialer struct {
	driver string
	dsn    string
	dbName string
	logger *logrus.Entry
}

// NewSQLDialer builds a dialer from a schema profile's driver and DSN
// rendering of the database configuration.
func NewSQLDialer(profile SchemaProfile, cfg DatabaseConfig, logger *logrus.Logger) *SQLDialer {
	return &SQLDialer{
		driver: profile.DriverName(),
		dsn:    profile.DSN(cfg),
		dbName: cfg.Database,
		logger: logger.WithField("component", "dialer"),
	}
}

// Dial opens and verifies one session. Failures are classified into
// user-facing connection errors (auth, missing database, unreachable
// host).
func (d *SQLDialer) Dial(ctx context.Context) (Conn, error) {
	db, err := sql.Open(d.driver, d.dsn)
	if err != nil {
		return nil, apperr.ConnectionWithHint(err, d.dbName)
	}

	// One pooled Conn corresponds to one exclusive server session; the
	// outer pool owns reuse, validation and expiry.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		d.logger.WithField("error", err).Error("connection establishment failed")
		return nil, apperr.ConnectionWithHint(err, d.dbName)
	}

	return db, nil
}
