package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// sqlDBTX describes operations shared by sql.DB and sql.Tx.
type sqlDBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// detectPostgresDialect reports whether the current database is PostgreSQL.
func detectPostgresDialect(ctx context.Context, db *sql.DB) (bool, error) {
	if db == nil {
		return false, errors.New("sql db is required")
	}

	const query = "SELECT current_setting('server_version_num')"
	var version string
	if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "current_setting") ||
			strings.Contains(msg, "no such function") ||
			strings.Contains(msg, "syntax error") {
			return false, nil
		}
		return false, errors.Wrap(err, "probe postgres current_setting")
	}

	return strings.TrimSpace(version) != "", nil
}

// rebindSQL rewrites positional placeholders for PostgreSQL.
func rebindSQL(query string, isPostgres bool) string {
	if !isPostgres {
		return query
	}

	var builder strings.Builder
	builder.Grow(len(query) + 8)
	argIndex := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			builder.WriteString("$")
			builder.WriteString(strconv.Itoa(argIndex))
			argIndex++
			continue
		}
		builder.WriteByte(query[i])
	}

	return builder.String()
}

// isUniqueViolation reports whether err is a unique constraint failure of either dialect.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
