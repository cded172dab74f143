package disclosure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suntianc/toolcore/internal/model"
)

func sampleTool() *model.Tool {
	return &model.Tool{
		ID:          "search-files",
		Name:        "Search Files",
		Description: "Find files by glob pattern.",
		Tags:        []string{"fs", "search"},
		Version:     "1.2.0",
		Path:        "/tools/search-files",
		Metadata: map[string]any{
			"inputSchema":  map[string]any{"type": "object"},
			"outputSchema": map[string]any{"type": "array"},
			"examples": []any{
				map[string]any{"input": "*.go", "output": []any{"a.go"}},
			},
			"parameters": []any{
				map[string]any{"name": "pattern", "type": "string", "required": true},
			},
			"scripts": []any{
				map[string]any{"name": "run", "language": "python", "content": "print(1)"},
			},
			"dependencies": []any{
				map[string]any{"name": "glob", "version": "1.0"},
			},
			"resources": []any{
				map[string]any{"type": "doc", "path": "README.md", "description": "docs"},
			},
		},
	}
}

func TestBuildContent_MetadataLevelOmitsSchema(t *testing.T) {
	dc := BuildContent(sampleTool(), model.LevelMetadata)

	assert.Equal(t, "Search Files", dc.Name)
	assert.Equal(t, []string{"fs", "search"}, dc.Tags)
	assert.Nil(t, dc.InputSchema)
	assert.Nil(t, dc.Scripts)
	assert.Positive(t, dc.TokenCount)
}

func TestBuildContent_ContentLevelIncludesSchemaNotResources(t *testing.T) {
	dc := BuildContent(sampleTool(), model.LevelContent)

	require.NotNil(t, dc.InputSchema)
	require.NotNil(t, dc.OutputSchema)
	assert.Len(t, dc.Examples, 1)
	assert.Len(t, dc.Parameters, 1)
	assert.Equal(t, "1.2.0", dc.Version)
	assert.Nil(t, dc.Scripts)
	assert.Nil(t, dc.Resources)
}

func TestBuildContent_ResourcesLevelIncludesEverything(t *testing.T) {
	dc := BuildContent(sampleTool(), model.LevelResources)

	require.Len(t, dc.Scripts, 1)
	assert.Equal(t, "run", dc.Scripts[0].Name)
	assert.Equal(t, "python", dc.Scripts[0].Language)
	require.Len(t, dc.Dependencies, 1)
	assert.Equal(t, "glob", dc.Dependencies[0].Name)
	require.Len(t, dc.Resources, 1)
	assert.Equal(t, "README.md", dc.Resources[0].Path)
}

func TestBuildContent_ResourcesFallsBackToToolPath(t *testing.T) {
	tool := &model.Tool{ID: "bare", Name: "Bare", Path: "/tools/bare"}
	dc := BuildContent(tool, model.LevelResources)

	require.Len(t, dc.Resources, 1)
	assert.Equal(t, "/tools/bare", dc.Resources[0].Path)
}

func TestBuildContent_TokenCountMonotonicByLevel(t *testing.T) {
	tool := sampleTool()
	metadata := BuildContent(tool, model.LevelMetadata).TokenCount
	content := BuildContent(tool, model.LevelContent).TokenCount
	resources := BuildContent(tool, model.LevelResources).TokenCount

	assert.LessOrEqual(t, metadata, content)
	assert.LessOrEqual(t, content, resources)
}

func TestEstimateTokens_EmptyIsZero(t *testing.T) {
	assert.Zero(t, estimateTokens(""))
	assert.Positive(t, estimateTokens("some text"))
}

func TestExtractDependencies_RequiresStringList(t *testing.T) {
	meta := map[string]any{"requires": []any{"pkg-a", "pkg-b"}}
	deps := extractDependencies(meta)
	require.Len(t, deps, 2)
	assert.Equal(t, "pkg-a", deps[0].Name)
	assert.Equal(t, "*", deps[0].Version)
}
