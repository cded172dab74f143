package vectorstore

import (
	"context"
	"sort"

	"github.com/apache/arrow/go/arrow"
	"github.com/suntianc/toolcore/internal/model"
)

// fakeDriver is an in-memory Driver used by manager and search tests;
// it never touches disk, so tests exercise Manager's orchestration
// logic (open-or-create, dimension check, index build) without a real
// LanceDB instance.
type fakeDriver struct {
	conns map[string]*fakeConnection
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{conns: make(map[string]*fakeConnection)}
}

func (d *fakeDriver) Open(_ context.Context, path string) (Connection, error) {
	c, ok := d.conns[path]
	if !ok {
		c = &fakeConnection{tables: make(map[string]*fakeTable)}
		d.conns[path] = c
	}
	return c, nil
}

type fakeConnection struct {
	tables map[string]*fakeTable
	closed bool
}

func (c *fakeConnection) TableNames(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (c *fakeConnection) OpenTable(_ context.Context, name string) (Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, ErrSchemaMismatch
	}
	return t, nil
}

func (c *fakeConnection) CreateTable(_ context.Context, name string, schema *arrow.Schema) (Table, error) {
	t := &fakeTable{schema: schema}
	c.tables[name] = t
	return t, nil
}

func (c *fakeConnection) DropTable(_ context.Context, name string) error {
	delete(c.tables, name)
	return nil
}

func (c *fakeConnection) Close() error {
	c.closed = true
	return nil
}

type fakeTable struct {
	schema *arrow.Schema
	rows   []model.Tool
}

func (t *fakeTable) Schema(_ context.Context) (*arrow.Schema, error) {
	return t.schema, nil
}

func (t *fakeTable) Add(_ context.Context, rows []model.Tool) error {
	t.rows = append(t.rows, rows...)
	return nil
}

func (t *fakeTable) Delete(_ context.Context, filterExpr string) error {
	var kept []model.Tool
	for _, r := range t.rows {
		if "id = '"+r.ID+"'" != filterExpr {
			kept = append(kept, r)
		}
	}
	t.rows = kept
	return nil
}

func (t *fakeTable) CountRows(_ context.Context) (int64, error) {
	return int64(len(t.rows)), nil
}

func (t *fakeTable) CreateIndex(_ context.Context, _ string, _ model.IVFPQConfig, _ bool) error {
	return nil
}

func (t *fakeTable) Query(_ context.Context, vector []float32, _ model.DistanceType, limit int) ([]QueryRow, error) {
	out := make([]QueryRow, 0, len(t.rows))
	for i, r := range t.rows {
		out = append(out, QueryRow{Tool: r, Distance: float64(i)})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
