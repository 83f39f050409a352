package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
)

// ParseDialect maps a DB_DRIVER value onto a dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return string(d)
}

// DB wraps sql.DB together with its dialect.
type DB struct {
	Client  *sql.DB
	Dialect Dialect
}

// NewDB opens a connection pool, checks it and applies the embedded migrations.
func NewDB(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	if dialect == SQLite {
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}

	client, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if dialect == SQLite {
		// single writer
		client.SetMaxOpenConns(1)
		client.SetMaxIdleConns(1)
		client.SetConnMaxLifetime(0)
	} else {
		client.SetMaxOpenConns(10)
		client.SetMaxIdleConns(5)
		client.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.PingContext(pingCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	db := &DB{Client: client, Dialect: dialect}
	if err := Migrate(ctx, db); err != nil {
		_ = client.Close()
		return nil, err
	}
	return db, nil
}

// sqliteDSN turns a plain file path into a modernc DSN with server PRAGMAs.
// DSNs already starting with "file:" are used untouched.
func sqliteDSN(path string) (string, error) {
	if path == "" {
		path = "./data/sentara.db"
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir db dir: %w", err)
	}
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	), nil
}

// Rebind rewrites '?' placeholders into the dialect's form.
func (d *DB) Rebind(query string) string {
	if d.Dialect != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
