// Package lancedb adapts github.com/lancedb/lancedb-go to the
// vectorstore.Driver contract. LanceDB's Go bindings expose Arrow-backed
// tables with IVF-PQ indexing and nearest_to vector queries, matching the
// external interface contract field-for-field; this package is the thin
// seam between that library's native API and the retrieval core's
// injected Driver/Connection/Table interfaces.
package lancedb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/arrow"
	lance "github.com/lancedb/lancedb-go"

	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/vectorstore"
)

// NewDriver returns a vectorstore.Driver backed by LanceDB.
func NewDriver() vectorstore.Driver {
	return &driver{}
}

type driver struct{}

func (d *driver) Open(ctx context.Context, path string) (vectorstore.Connection, error) {
	conn, err := lance.Connect(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("lancedb connect %s: %w", path, err)
	}
	return &connection{conn: conn, root: path}, nil
}

type connection struct {
	conn *lance.Connection
	root string
}

func (c *connection) TableNames(ctx context.Context) ([]string, error) {
	return c.conn.TableNames(ctx)
}

func (c *connection) OpenTable(ctx context.Context, name string) (vectorstore.Table, error) {
	t, err := c.conn.OpenTable(ctx, name)
	if err != nil {
		return nil, err
	}
	return &table{t: t, name: name}, nil
}

func (c *connection) CreateTable(ctx context.Context, name string, schema *arrow.Schema) (vectorstore.Table, error) {
	t, err := c.conn.CreateTable(ctx, name, nil, lance.WithSchema(schema))
	if err != nil {
		return nil, err
	}
	return &table{t: t, name: name}, nil
}

// DropTable removes the table and, per the storage contract, the
// <root>/<table_name> subtree on disk, ignoring "not found" errors.
func (c *connection) DropTable(ctx context.Context, name string) error {
	if err := c.conn.DropTable(ctx, name); err != nil {
		return err
	}
	tableDir := filepath.Join(c.root, name+".lance")
	if err := os.RemoveAll(tableDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove table directory %s: %w", tableDir, err)
	}
	return nil
}

func (c *connection) Close() error {
	return c.conn.Close()
}

type table struct {
	t    *lance.Table
	name string
}

func (tb *table) Schema(ctx context.Context) (*arrow.Schema, error) {
	return tb.t.Schema(ctx)
}

func (tb *table) Add(ctx context.Context, rows []model.Tool) error {
	records, err := toArrowRecords(rows)
	if err != nil {
		return err
	}
	return tb.t.Add(ctx, records)
}

func (tb *table) Delete(ctx context.Context, filterExpr string) error {
	return tb.t.Delete(ctx, filterExpr)
}

func (tb *table) CountRows(ctx context.Context) (int64, error) {
	n, err := tb.t.CountRows(ctx)
	return int64(n), err
}

func (tb *table) CreateIndex(ctx context.Context, column string, cfg model.IVFPQConfig, replace bool) error {
	return tb.t.CreateIndex(ctx, column, lance.IVFPQConfig{
		NumPartitions: cfg.NumPartitions,
		NumSubVectors: cfg.NumSubVectors,
		NumBits:       cfg.NumBits,
	}, lance.WithReplace(replace))
}

func (tb *table) Query(ctx context.Context, vector []float32, distance model.DistanceType, limit int) ([]vectorstore.QueryRow, error) {
	rows, err := tb.t.Query(ctx).
		NearestTo(vector).
		DistanceType(string(distance)).
		Limit(limit).
		ToArray(ctx)
	if err != nil {
		return nil, err
	}
	return fromArrowRows(rows)
}
