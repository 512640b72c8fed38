// Package catalog caches table schemas for the lifetime of a cherry-pick run.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sendyhalim/lezeh/internal/introspect"
	"github.com/sendyhalim/lezeh/internal/logger"
)

var (
	// ErrSchemaNotFound means the requested table does not exist.
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrIntrospection means the table structure could not be read.
	ErrIntrospection = errors.New("introspection failed")
)

// Introspector reads the structure of a single table.
type Introspector interface {
	IntrospectTable(ctx context.Context, schema, table string) (*introspect.TableSchema, error)
}

// Catalog memoizes table schemas per (schema, table). It is safe for
// concurrent use; concurrent misses on the same table share one
// introspection.
type Catalog struct {
	src Introspector

	mu     sync.RWMutex
	tables map[introspect.TableID]*introspect.TableSchema
	group  singleflight.Group
}

// New returns an empty catalog reading from src.
func New(src Introspector) *Catalog {
	return &Catalog{
		src:    src,
		tables: make(map[introspect.TableID]*introspect.TableSchema),
	}
}

// Get returns the schema of schema.table, introspecting it on first use.
func (c *Catalog) Get(ctx context.Context, schema, table string) (*introspect.TableSchema, error) {
	id := introspect.TableID{Schema: schema, Name: table}

	c.mu.RLock()
	t, ok := c.tables[id]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := c.group.Do(id.String(), func() (any, error) {
		c.mu.RLock()
		cached, ok := c.tables[id]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		logger.Debug("introspecting %s", id)
		t, err := c.src.IntrospectTable(ctx, schema, table)
		if err != nil {
			if errors.Is(err, introspect.ErrTableNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, id)
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrIntrospection, id, err)
		}

		c.mu.Lock()
		if existing, ok := c.tables[id]; ok {
			t = existing
		} else {
			c.tables[id] = t
		}
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*introspect.TableSchema), nil
}

// Len reports how many tables have been introspected so far.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}
