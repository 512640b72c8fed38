package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendyhalim/lezeh/internal/introspect"
	"github.com/sendyhalim/lezeh/internal/value"
)

func setupGateway(t *testing.T, retry RetryConfig) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewGateway(conn, testDialect{}, retry), mock
}

func TestBuildQuery(t *testing.T) {
	query, args := BuildQuery(testDialect{}, Select{
		Schema:  "public",
		Table:   "order_items",
		Where:   []Filter{{Column: "order_id", Value: value.Integer(10)}, {Column: "sku", Value: value.Text("A-1")}},
		OrderBy: []string{"id"},
	})

	assert.Equal(t, `SELECT * FROM "public"."order_items" WHERE "order_id" = $1 AND "sku" = $2 ORDER BY "id"`, query)
	assert.Equal(t, []any{int64(10), "A-1"}, args)
}

func TestBuildQueryQuotesHostileNames(t *testing.T) {
	query, _ := BuildQuery(testDialect{}, Select{Table: `we"ird`})
	assert.Equal(t, `SELECT * FROM "we""ird"`, query)
}

func TestFetchRows(t *testing.T) {
	g, mock := setupGateway(t, DefaultRetryConfig())

	mock.ExpectQuery(`SELECT * FROM "public"."customers" WHERE "id" = $1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "Ann"))

	rows, err := g.FetchRows(context.Background(), Select{
		Schema: "public",
		Table:  "customers",
		Where:  []Filter{{Column: "id", Value: value.Integer(7)}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "id", rows[0][0].Name)
	assert.Equal(t, int64(7), rows[0][0].Value)
	assert.Equal(t, "name", rows[0][1].Name)
	assert.Equal(t, "Ann", rows[0][1].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRowsRetriesTransientErrors(t *testing.T) {
	g, mock := setupGateway(t, RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond})

	q := `SELECT * FROM "public"."orders" WHERE "id" = $1`
	mock.ExpectQuery(q).WithArgs(int64(1)).WillReturnError(errors.New("read tcp 10.0.0.1:5432: connection reset by peer"))
	mock.ExpectQuery(q).WithArgs(int64(1)).WillReturnError(errors.New("pq: deadlock detected"))
	mock.ExpectQuery(q).WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	rows, err := g.FetchRows(context.Background(), Select{
		Schema: "public",
		Table:  "orders",
		Where:  []Filter{{Column: "id", Value: value.Integer(1)}},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRowsGivesUpAfterMaxAttempts(t *testing.T) {
	g, mock := setupGateway(t, RetryConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond})

	q := `SELECT * FROM "orders"`
	mock.ExpectQuery(q).WillReturnError(errors.New("connection refused"))
	mock.ExpectQuery(q).WillReturnError(errors.New("connection refused"))

	_, err := g.FetchRows(context.Background(), Select{Table: "orders"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRowsDoesNotRetryPermanentErrors(t *testing.T) {
	g, mock := setupGateway(t, RetryConfig{MaxAttempts: 5, BaseBackoff: time.Millisecond})

	permanent := errors.New(`pq: relation "orders" does not exist`)
	mock.ExpectQuery(`SELECT * FROM "orders"`).WillReturnError(permanent)

	_, err := g.FetchRows(context.Background(), Select{Table: "orders"})
	require.Error(t, err)
	assert.ErrorIs(t, err, permanent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetry(ctx, DefaultRetryConfig(), "op", func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("ERROR: could not serialize access (SQLSTATE 40001)"), true},
		{errors.New("Error 1205: Lock wait timeout exceeded"), true},
		{errors.New("database is locked"), true},
		{errors.New("syntax error at or near"), false},
		{context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestGroupForeignKeys(t *testing.T) {
	items := introspect.TableID{Schema: "public", Name: "order_items"}
	orders := introspect.TableID{Schema: "public", Name: "orders"}
	products := introspect.TableID{Schema: "public", Name: "products"}

	fks := GroupForeignKeys([]ForeignKeyColumn{
		{Constraint: "fk_order", From: items, FromColumn: "order_id", To: orders, ToColumn: "id"},
		{Constraint: "fk_product", From: items, FromColumn: "product_sku", To: products, ToColumn: "sku"},
		{Constraint: "fk_product", From: items, FromColumn: "product_region", To: products, ToColumn: "region"},
	})

	require.Len(t, fks, 2)
	assert.Equal(t, "fk_order", fks[0].Constraint)
	assert.Equal(t, []string{"order_id"}, fks[0].FromColumns)
	assert.Equal(t, []string{"product_sku", "product_region"}, fks[1].FromColumns)
	assert.Equal(t, []string{"sku", "region"}, fks[1].ToColumns)
	assert.Equal(t, products, fks[1].To)
}

func TestIntrospectTableKeepsNotFound(t *testing.T) {
	_, err := NewTableSchema(introspect.TableID{Schema: "public", Name: "ghost"}, nil, nil, nil, nil)
	assert.ErrorIs(t, err, introspect.ErrTableNotFound)
}
