package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sendyhalim/lezeh/internal/introspect"
	"github.com/sendyhalim/lezeh/pkg/config"
)

// ErrDialectNotRegistered is returned when no Dialect handles a driver.
var ErrDialectNotRegistered = errors.New("dialect not registered")

// Querier is the subset of *sql.DB a Dialect needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect knows how to describe a table and how to phrase a row lookup for
// one database flavour.
type Dialect interface {

	// Introspect returns the columns, primary key and both directions of
	// foreign keys of schema.table. It returns introspect.ErrTableNotFound
	// when the table does not exist.
	Introspect(ctx context.Context, q Querier, schema, table string) (*introspect.TableSchema, error)

	// DefaultSchema is the schema unqualified names resolve to.
	DefaultSchema(ctx context.Context, q Querier) (string, error)

	QuoteIdent(name string) string

	// Placeholder returns the bind parameter for the n-th argument, 1-based.
	Placeholder(n int) string
}

var dialects = map[string]Dialect{}

// Register makes a Dialect available under name.
func Register(name string, d Dialect) {
	dialects[strings.ToLower(name)] = d
}

// Lookup returns the Dialect registered for driver, after alias
// normalization.
func Lookup(driver string) (Dialect, error) {
	driver = config.NormalizeDriver(driver)
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrDialectNotRegistered, driver, listRegistered())
	}
	return d, nil
}

// listRegistered returns the registered dialect keys (for diagnostics).
func listRegistered() []string {
	keys := make([]string, 0, len(dialects))
	for k := range dialects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RegisteredDialects is a helper that allows the CLI to print registered dialects
func RegisteredDialects() []string {
	return listRegistered()
}

// Options tunes a Gateway.
type Options struct {
	// Timeout bounds the initial ping. Zero means 10 seconds.
	Timeout time.Duration
	Retry   RetryConfig
}

// Open connects to the database and returns a Gateway reading through the
// dialect registered for driver.
func Open(ctx context.Context, driver, dsn string, opts Options) (*Gateway, error) {
	driver = config.NormalizeDriver(driver)
	dialect, err := Lookup(driver)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return NewGateway(conn, dialect, opts.Retry), nil
}
