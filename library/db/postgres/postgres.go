package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	errors "github.com/Laisky/errors/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DialInfo postgres dial info
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd string
	// Port defaults to 5432
	Port int
}

// BuildDSN builds a PostgreSQL DSN for the pgx stdlib driver.
func BuildDSN(dialInfo DialInfo) string {
	port := dialInfo.Port
	if port <= 0 {
		port = 5432
	}
	return "host=" + dialInfo.Addr + " user=" + dialInfo.User + " password=" + dialInfo.Pwd +
		" dbname=" + dialInfo.DBName + " port=" + strconv.Itoa(port) + " sslmode=disable TimeZone=UTC"
}

// NewDB opens and pings a postgres database through pgx.
func NewDB(ctx context.Context, dialInfo DialInfo) (*sql.DB, error) {
	db, err := sql.Open("pgx", BuildDSN(dialInfo))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	// config db
	db.SetMaxIdleConns(6)
	db.SetMaxOpenConns(50)
	db.SetConnMaxLifetime(time.Hour)

	return db, nil
}
