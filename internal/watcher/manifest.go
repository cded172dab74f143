package watcher

import (
	"context"
	"log/slog"
)

// ManifestLoader parses the tool manifest at path into a Tool record,
// or returns (nil, false, nil) if the path should be ignored (not a manifest).
type ManifestLoader func(path string) (ToolRecord, bool, error)

// ToolRecord is the subset of internal/model.Tool the manifest
// ingester needs; kept untyped here to avoid an import cycle with
// internal/model, and converted by the caller's IngestSink.
type ToolRecord any

// IngestSink applies a parsed manifest addition, update, or removal to
// the vector store.
type IngestSink interface {
	Upsert(ctx context.Context, record ToolRecord) error
	Remove(ctx context.Context, id string) error
}

// ManifestIngester watches a directory of tool manifests and applies
// incremental adds/updates/removes to an IngestSink as files change,
// the supplement to spec §4's static ingestion path: tools and skills
// can be added or edited on disk without a full reindex.
type ManifestIngester struct {
	watcher *HybridWatcher
	load    ManifestLoader
	sink    IngestSink
	logger  *slog.Logger
	idOf    func(path string) string
}

// NewManifestIngester constructs a ManifestIngester over w, calling load
// to parse each changed file and idOf to derive a stable tool ID from a
// path (used on delete, where the file no longer exists to parse).
func NewManifestIngester(w *HybridWatcher, load ManifestLoader, sink IngestSink, idOf func(string) string, logger *slog.Logger) *ManifestIngester {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManifestIngester{watcher: w, load: load, sink: sink, idOf: idOf, logger: logger}
}

// Run starts the underlying watcher and processes events until ctx is
// done or the watcher stops. It is intended to run in its own goroutine.
func (m *ManifestIngester) Run(ctx context.Context, root string) error {
	if err := m.watcher.Start(ctx, root); err != nil {
		return err
	}
	defer func() { _ = m.watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-m.watcher.Events():
			if !ok {
				return nil
			}
			m.applyBatch(ctx, batch)
		case err, ok := <-m.watcher.Errors():
			if !ok {
				continue
			}
			m.logger.Warn("manifest watcher error", slog.Any("err", err))
		}
	}
}

func (m *ManifestIngester) applyBatch(ctx context.Context, batch []FileEvent) {
	for _, ev := range batch {
		switch ev.Operation {
		case OpDelete:
			id := m.idOf(ev.Path)
			if err := m.sink.Remove(ctx, id); err != nil {
				m.logger.Warn("manifest remove failed", slog.String("path", ev.Path), slog.Any("err", err))
			}
		case OpCreate, OpModify, OpRename:
			record, ok, err := m.load(ev.Path)
			if err != nil {
				m.logger.Warn("manifest parse failed", slog.String("path", ev.Path), slog.Any("err", err))
				continue
			}
			if !ok {
				continue
			}
			if err := m.sink.Upsert(ctx, record); err != nil {
				m.logger.Warn("manifest upsert failed", slog.String("path", ev.Path), slog.Any("err", err))
			}
		}
	}
}
