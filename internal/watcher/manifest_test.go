package watcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	upserted []string
	removed  []string
}

func (f *fakeSink) Upsert(_ context.Context, record ToolRecord) error {
	f.upserted = append(f.upserted, record.(string))
	return nil
}

func (f *fakeSink) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func TestManifestIngester_AppliesUpsertAndRemove(t *testing.T) {
	sink := &fakeSink{}
	load := func(path string) (ToolRecord, bool, error) {
		if path == "skip.txt" {
			return nil, false, nil
		}
		return path, true, nil
	}
	idOf := func(path string) string { return path }

	ing := NewManifestIngester(nil, load, sink, idOf, nil)
	ing.applyBatch(context.Background(), []FileEvent{
		{Path: "a.yaml", Operation: OpCreate},
		{Path: "skip.txt", Operation: OpModify},
		{Path: "b.yaml", Operation: OpDelete},
	})

	require.Equal(t, []string{"a.yaml"}, sink.upserted)
	require.Equal(t, []string{"b.yaml"}, sink.removed)
}
