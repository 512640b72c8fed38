package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendyhalim/lezeh/internal/introspect"
)

type countingIntrospector struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingIntrospector) IntrospectTable(ctx context.Context, schema, table string) (*introspect.TableSchema, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	if c.err != nil {
		return nil, c.err
	}
	if table == "missing" {
		return nil, introspect.ErrTableNotFound
	}
	return &introspect.TableSchema{
		ID:         introspect.TableID{Schema: schema, Name: table},
		Columns:    []introspect.Column{{Name: "id", Type: "int8", PK: true}},
		PrimaryKey: []string{"id"},
	}, nil
}

func TestGetMemoizes(t *testing.T) {
	src := &countingIntrospector{}
	c := New(src)

	first, err := c.Get(context.Background(), "public", "orders")
	require.NoError(t, err)
	second, err := c.Get(context.Background(), "public", "orders")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1, c.Len())

	_, err = c.Get(context.Background(), "sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestGetCollapsesConcurrentMisses(t *testing.T) {
	src := &countingIntrospector{delay: 20 * time.Millisecond}
	c := New(src)

	var wg sync.WaitGroup
	results := make([]*introspect.TableSchema, 16)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			t, err := c.Get(context.Background(), "public", "customers")
			if err == nil {
				results[i] = t
			}
		}()
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestGetErrors(t *testing.T) {
	_, err := New(&countingIntrospector{}).Get(context.Background(), "public", "missing")
	assert.ErrorIs(t, err, ErrSchemaNotFound)

	broken := errors.New("connection refused")
	c := New(&countingIntrospector{err: broken})
	_, err = c.Get(context.Background(), "public", "orders")
	assert.ErrorIs(t, err, ErrIntrospection)
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, 0, c.Len())
}
