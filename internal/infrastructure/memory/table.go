package memory

import (
	"fmt"

	"github.com/wms-platform/reservation-service/internal/domain"
)

// table is one committed collection of the store
type table[T any] struct {
	name       string
	rows       map[string]*T
	clone      func(*T) *T
	version    func(*T) int64
	setVersion func(*T, int64)
}

func newTable[T any](name string, clone func(*T) *T, version func(*T) int64, setVersion func(*T, int64)) *table[T] {
	return &table[T]{
		name:       name,
		rows:       make(map[string]*T),
		clone:      clone,
		version:    version,
		setVersion: setVersion,
	}
}

type write[T any] struct {
	value  *T
	base   int64
	insert bool
}

// changeSet buffers the writes of one unit of work against a table until commit
type changeSet[T any] struct {
	table  *table[T]
	writes map[string]write[T]
}

func newChangeSet[T any](t *table[T]) *changeSet[T] {
	return &changeSet[T]{table: t, writes: make(map[string]write[T])}
}

// get reads through the buffered writes. The caller holds the store read lock.
func (c *changeSet[T]) get(id string) (*T, bool) {
	if w, ok := c.writes[id]; ok {
		return c.table.clone(w.value), true
	}
	if v, ok := c.table.rows[id]; ok {
		return c.table.clone(v), true
	}
	return nil, false
}

// all returns committed rows overlaid with buffered writes. The caller holds the store read lock.
func (c *changeSet[T]) all() []*T {
	out := make([]*T, 0, len(c.table.rows)+len(c.writes))
	for id, v := range c.table.rows {
		if _, shadowed := c.writes[id]; shadowed {
			continue
		}
		out = append(out, c.table.clone(v))
	}
	for _, w := range c.writes {
		out = append(out, c.table.clone(w.value))
	}
	return out
}

func (c *changeSet[T]) insert(id string, value *T) error {
	if _, exists := c.get(id); exists {
		return fmt.Errorf("%s %s already exists", c.table.name, id)
	}
	c.writes[id] = write[T]{value: c.table.clone(value), insert: true}
	return nil
}

func (c *changeSet[T]) save(id string, value *T) error {
	current, ok := c.get(id)
	if !ok {
		return fmt.Errorf("%s %s does not exist", c.table.name, id)
	}
	if c.table.version(current) != c.table.version(value) {
		return fmt.Errorf("%w: %s %s is at version %d, update based on %d",
			domain.ErrConcurrentModification, c.table.name, id, c.table.version(current), c.table.version(value))
	}

	next := c.table.version(value) + 1
	c.table.setVersion(value, next)

	w, buffered := c.writes[id]
	if !buffered {
		w = write[T]{base: c.table.version(current)}
	}
	w.value = c.table.clone(value)
	c.writes[id] = w
	return nil
}

// validate checks that nothing committed underneath the buffered writes.
// The caller holds the store write lock.
func (c *changeSet[T]) validate() error {
	for id, w := range c.writes {
		committed, exists := c.table.rows[id]
		switch {
		case w.insert && exists:
			return fmt.Errorf("%w: %s %s was inserted concurrently", domain.ErrConcurrentModification, c.table.name, id)
		case !w.insert && !exists:
			return fmt.Errorf("%w: %s %s disappeared", domain.ErrConcurrentModification, c.table.name, id)
		case !w.insert && c.table.version(committed) != w.base:
			return fmt.Errorf("%w: %s %s changed concurrently", domain.ErrConcurrentModification, c.table.name, id)
		}
	}
	return nil
}

func (c *changeSet[T]) apply() {
	for id, w := range c.writes {
		c.table.rows[id] = w.value
	}
}
