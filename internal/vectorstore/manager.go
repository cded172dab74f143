package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/toolerrors"
)

// Config configures a Manager.
type Config struct {
	StorageRoot  string
	TableName    string
	Dimension    int
	TargetRecall float64
	FastMode     bool
}

// DefaultConfig returns a Manager config with a 0.9 target recall.
func DefaultConfig(root, table string, dim int) Config {
	return Config{StorageRoot: root, TableName: table, Dimension: dim, TargetRecall: 0.9}
}

// Info describes the manager's current view of the table, for the
// read-only compatibility report.
type Info struct {
	RowCount        int64
	ConfiguredDim   int
	ActualDim       int
	DimensionMatch  bool
	IVFPQ           model.IVFPQConfig
}

// Manager owns the vector table lifecycle: open-or-create, dimension
// compatibility, schema migration, index (re)build, and search.
type Manager struct {
	cfg       Config
	driver    Driver
	optimizer *Optimizer
	logger    *slog.Logger

	conn  Connection
	table Table
	lock  *flock.Flock
}

// NewManager constructs a vector index Manager over the given driver.
func NewManager(cfg Config, driver Driver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		driver:    driver,
		optimizer: NewOptimizer(),
		logger:    logger,
		lock:      flock.New(cfg.StorageRoot + ".lock"),
	}
}

// Open opens or creates the table, checking for a dimension mismatch and
// recreating the table when one is found.
func (m *Manager) Open(ctx context.Context) error {
	if err := m.lock.Lock(); err != nil {
		return toolerrors.Wrap(toolerrors.KindVectorDB, "open.lock", err)
	}
	defer m.lock.Unlock()

	conn, err := m.openWithRetry(ctx)
	if err != nil {
		return toolerrors.Wrap(toolerrors.KindVectorDB, "open", err)
	}
	m.conn = conn

	names, err := conn.TableNames(ctx)
	if err != nil {
		return toolerrors.Wrap(toolerrors.KindVectorDB, "open.table_names", err)
	}

	exists := false
	for _, n := range names {
		if n == m.cfg.TableName {
			exists = true
			break
		}
	}

	if !exists {
		table, err := conn.CreateTable(ctx, m.cfg.TableName, Schema(m.cfg.Dimension))
		if err != nil {
			return toolerrors.Wrap(toolerrors.KindVectorDB, "open.create_table", err)
		}
		m.table = table
		return nil
	}

	table, err := conn.OpenTable(ctx, m.cfg.TableName)
	if err != nil {
		return toolerrors.Wrap(toolerrors.KindVectorDB, "open.open_table", err)
	}
	m.table = table

	schema, err := table.Schema(ctx)
	if err != nil {
		return toolerrors.Wrap(toolerrors.KindVectorDB, "open.schema", err)
	}
	if dim, ok := VectorDimension(schema); ok && dim != m.cfg.Dimension {
		m.logger.Warn("vector table dimension mismatch, recreating",
			slog.Int("declared", dim), slog.Int("configured", m.cfg.Dimension))
		return m.recreate(ctx)
	}

	if err := m.probeSchema(ctx); err != nil {
		if errors.Is(err, ErrSchemaMismatch) {
			m.logger.Warn("vector table schema probe failed, recreating")
			return m.recreate(ctx)
		}
		return toolerrors.Wrap(toolerrors.KindVectorDB, "open.probe", err)
	}

	return nil
}

// openWithRetry wraps the driver's Open in exponential backoff, since
// this is a genuine I/O boundary rather than an internal retry case.
func (m *Manager) openWithRetry(ctx context.Context) (Connection, error) {
	var conn Connection
	op := func() error {
		c, err := m.driver.Open(ctx, m.cfg.StorageRoot)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return conn, nil
}

// probeSchema inserts a canary row containing all currently-required
// fields; a schema-mismatch error from the driver signals the table needs
// recreation.
func (m *Manager) probeSchema(ctx context.Context) error {
	canary := model.Tool{
		ID:          "__schema_probe__",
		Name:        "schema-probe",
		Description: "schema-probe",
		Tags:        []string{},
		ToolType:    model.ToolTypeBuiltin,
		Metadata:    map[string]any{},
		Vector:      make([]float32, m.cfg.Dimension),
		IndexedAt:   time.Now(),
	}
	if err := m.table.Add(ctx, []model.Tool{canary}); err != nil {
		if errors.Is(err, ErrSchemaMismatch) {
			return err
		}
		return nil // non-schema errors are not the probe's concern
	}
	return m.table.Delete(ctx, fmt.Sprintf("id = '%s'", canary.ID))
}

// recreate drops and rebuilds the table with the configured schema.
func (m *Manager) recreate(ctx context.Context) error {
	if err := m.conn.DropTable(ctx, m.cfg.TableName); err != nil {
		return toolerrors.Wrap(toolerrors.KindVectorDB, "recreate.drop", err)
	}
	table, err := m.conn.CreateTable(ctx, m.cfg.TableName, Schema(m.cfg.Dimension))
	if err != nil {
		return toolerrors.Wrap(toolerrors.KindVectorDB, "recreate.create", err)
	}
	m.table = table
	return nil
}

// BuildIndex (re)builds the IVF-PQ index, choosing parameters from the
// current row count via the Optimizer.
func (m *Manager) BuildIndex(ctx context.Context) (model.IVFPQConfig, error) {
	rows, err := m.table.CountRows(ctx)
	if err != nil {
		return model.IVFPQConfig{}, toolerrors.Wrap(toolerrors.KindVectorDB, "build_index.count", err)
	}
	cfg := m.optimizer.Optimize(rows, m.cfg.Dimension, m.cfg.TargetRecall, m.cfg.FastMode)
	if err := m.table.CreateIndex(ctx, "vector", cfg, true); err != nil {
		return cfg, toolerrors.Wrap(toolerrors.KindVectorDB, "build_index.create_index", err)
	}
	return cfg, nil
}

// Insert bulk-adds tool rows.
func (m *Manager) Insert(ctx context.Context, tools []model.Tool) error {
	if err := m.table.Add(ctx, tools); err != nil {
		return toolerrors.Wrap(toolerrors.KindVectorDB, "insert", err)
	}
	return nil
}

// Delete removes rows matching filterExpr.
func (m *Manager) Delete(ctx context.Context, filterExpr string) error {
	if err := m.table.Delete(ctx, filterExpr); err != nil {
		return toolerrors.Wrap(toolerrors.KindVectorDB, "delete", err)
	}
	return nil
}

// Count returns the current row count.
func (m *Manager) Count(ctx context.Context) (int64, error) {
	n, err := m.table.CountRows(ctx)
	if err != nil {
		return 0, toolerrors.Wrap(toolerrors.KindVectorDB, "count", err)
	}
	return n, nil
}

// Search issues a nearest_to query, requesting 2×limit rows so downstream
// filters can apply score thresholds.
func (m *Manager) Search(ctx context.Context, vector []float32, limit int) ([]QueryRow, error) {
	rows, err := m.table.Query(ctx, vector, model.DistanceCosine, limit*2)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindVectorSearch, "search", err)
	}
	return rows, nil
}

// Info returns a read-only compatibility report for the table.
func (m *Manager) Info(ctx context.Context) (Info, error) {
	rows, err := m.table.CountRows(ctx)
	if err != nil {
		return Info{}, toolerrors.Wrap(toolerrors.KindVectorDB, "info.count", err)
	}
	schema, err := m.table.Schema(ctx)
	if err != nil {
		return Info{}, toolerrors.Wrap(toolerrors.KindVectorDB, "info.schema", err)
	}
	actual, _ := VectorDimension(schema)
	return Info{
		RowCount:       rows,
		ConfiguredDim:  m.cfg.Dimension,
		ActualDim:      actual,
		DimensionMatch: actual == m.cfg.Dimension,
		IVFPQ:          m.optimizer.Optimize(rows, m.cfg.Dimension, m.cfg.TargetRecall, m.cfg.FastMode),
	}, nil
}

// Close releases the underlying connection.
func (m *Manager) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}
