package vectorstore

import (
	"context"

	"github.com/apache/arrow/go/arrow"
	"github.com/suntianc/toolcore/internal/model"
)

// Driver is the injected vector-store capability the index manager
// consumes. Its method set mirrors the external interface contract
// literally: open/table enumeration/create/drop at the connection level,
// schema/add/delete/count/create_index/query at the table level. The
// concrete implementation in internal/vectorstore/lancedb adapts this to
// github.com/lancedb/lancedb-go.
type Driver interface {
	Open(ctx context.Context, path string) (Connection, error)
}

// Connection is a single open handle to a vector store root.
type Connection interface {
	TableNames(ctx context.Context) ([]string, error)
	OpenTable(ctx context.Context, name string) (Table, error)
	CreateTable(ctx context.Context, name string, schema *arrow.Schema) (Table, error)
	DropTable(ctx context.Context, name string) error
	Close() error
}

// Table is one vector table's data-plane surface.
type Table interface {
	Schema(ctx context.Context) (*arrow.Schema, error)
	Add(ctx context.Context, rows []model.Tool) error
	Delete(ctx context.Context, filterExpr string) error
	CountRows(ctx context.Context) (int64, error)
	CreateIndex(ctx context.Context, column string, cfg model.IVFPQConfig, replace bool) error
	Query(ctx context.Context, vector []float32, distance model.DistanceType, limit int) ([]QueryRow, error)
}

// QueryRow is one row returned by Table.Query, the Go-side shape of
// `query().nearest_to(vec).distance_type(d).limit(n).to_array()`.
type QueryRow struct {
	Tool     model.Tool
	Distance float64
}

// ErrSchemaMismatch is returned by a driver when a canary insert is
// rejected because the table's declared schema no longer matches the
// caller's required fields.
var ErrSchemaMismatch = schemaMismatchError{}

type schemaMismatchError struct{}

func (schemaMismatchError) Error() string { return "vector table schema mismatch" }
