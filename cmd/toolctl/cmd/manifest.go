package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/watcher"
)

// manifestFile is the on-disk shape of a single tool/skill manifest
// entry; a directory of these is what internal/watcher.ManifestIngester
// watches and `toolctl ingest` bulk-loads.
type manifestFile struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Tags        []string       `yaml:"tags"`
	ToolType    string         `yaml:"tool_type"`
	Version     string         `yaml:"version"`
	Metadata    map[string]any `yaml:"metadata"`
}

// manifestLoader parses a manifest file into a model.Tool, or (nil,
// false, nil) if the path isn't a manifest (non-YAML files, directories).
func manifestLoader(path string) (watcher.ToolRecord, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, false, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if mf.ID == "" {
		mf.ID = manifestIDOf(path)
	}

	toolType := model.ToolType(mf.ToolType)
	if toolType == "" {
		toolType = model.ToolTypeSkill
	}

	return model.Tool{
		ID:          mf.ID,
		Name:        mf.Name,
		Description: mf.Description,
		Tags:        mf.Tags,
		Path:        path,
		Version:     mf.Version,
		ToolType:    toolType,
		Metadata:    mf.Metadata,
		IndexedAt:   time.Now(),
	}, true, nil
}

// manifestIDOf derives a stable tool ID from a manifest's path, used on
// delete where the file no longer exists to parse an explicit id field.
func manifestIDOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// manifestSink adapts app's embedder + vector store manager into
// watcher.IngestSink, embedding each tool's name+description on upsert.
type manifestSink struct {
	app *app
}

func (s manifestSink) Upsert(ctx context.Context, record watcher.ToolRecord) error {
	tool, ok := record.(model.Tool)
	if !ok {
		return fmt.Errorf("manifest sink: unexpected record type %T", record)
	}

	vec, err := s.app.embedder.Embed(ctx, tool.Name+" "+tool.Description)
	if err != nil {
		return fmt.Errorf("embed %s: %w", tool.ID, err)
	}
	tool.Vector = vec

	if err := s.app.manager.Delete(ctx, fmt.Sprintf("id = '%s'", tool.ID)); err != nil {
		return fmt.Errorf("remove stale %s: %w", tool.ID, err)
	}
	if err := s.app.manager.Insert(ctx, []model.Tool{tool}); err != nil {
		return fmt.Errorf("insert %s: %w", tool.ID, err)
	}
	s.app.registry.put(tool)
	return nil
}

func (s manifestSink) Remove(ctx context.Context, id string) error {
	if err := s.app.manager.Delete(ctx, fmt.Sprintf("id = '%s'", id)); err != nil {
		return err
	}
	s.app.registry.delete(id)
	return nil
}
