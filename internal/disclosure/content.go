package disclosure

import (
	"encoding/json"
	"math"

	"github.com/suntianc/toolcore/internal/model"
)

// estimateTokens approximates token count as ceil(len(text)/4); empty
// text estimates to 0.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / 4.0))
}

func estimateJSON(v any) int {
	if v == nil {
		return 0
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return estimateTokens(string(b))
}

// BuildContent materializes the disclosure payload for one tool at level.
func BuildContent(tool *model.Tool, level model.DisclosureLevel) *model.DisclosureContent {
	dc := &model.DisclosureContent{
		Level:       level,
		Name:        tool.Name,
		Description: tool.Description,
		Tags:        tool.Tags,
	}
	dc.TokenCount = estimateTokens(dc.Name) + estimateTokens(dc.Description)
	if level == model.LevelMetadata {
		return dc
	}

	meta := tool.Metadata
	dc.InputSchema = firstPresent(meta, "inputSchema", "parameters", "input")
	dc.OutputSchema = firstPresent(meta, "outputSchema", "output")
	dc.Examples = extractExamples(meta)
	dc.Parameters = extractParameters(meta)
	dc.Version = tool.Version
	dc.TokenCount += estimateJSON(dc.InputSchema)
	if level == model.LevelContent {
		return dc
	}

	dc.Scripts = extractScripts(meta)
	dc.Dependencies = extractDependencies(meta)
	dc.Resources = extractResources(meta, tool.Path)
	dc.TokenCount += estimateJSON(dc.OutputSchema)
	dc.TokenCount += estimateTokens(joinScriptNames(dc.Scripts))
	dc.TokenCount += estimateTokens(joinDependencyNames(dc.Dependencies))
	dc.TokenCount += estimateTokens(joinResourcePaths(dc.Resources))
	return dc
}

func firstPresent(meta map[string]any, keys ...string) any {
	if meta == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := meta[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func extractExamples(meta map[string]any) []model.Example {
	raw := firstPresent(meta, "examples", "example")
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]model.Example, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, model.Example{Input: m["input"], Output: m["output"]})
			continue
		}
		// Bare string/scalar elements: both input and output become the element.
		out = append(out, model.Example{Input: it, Output: it})
	}
	return out
}

func extractParameters(meta map[string]any) []model.SchemaField {
	raw := firstPresent(meta, "parameters", "inputs", "args")
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]model.SchemaField, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		field := model.SchemaField{Type: "string"}
		if v, ok := m["name"].(string); ok {
			field.Name = v
		}
		if v, ok := m["type"].(string); ok && v != "" {
			field.Type = v
		}
		if v, ok := m["required"].(bool); ok {
			field.Required = v
		}
		if v, ok := m["description"].(string); ok {
			field.Description = v
		}
		out = append(out, field)
	}
	return out
}

func extractScripts(meta map[string]any) []model.Script {
	raw := firstPresent(meta, "scripts", "code")
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]model.Script, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		s := model.Script{Name: "script", Language: "javascript"}
		if v, ok := m["name"].(string); ok && v != "" {
			s.Name = v
		}
		if v, ok := m["language"].(string); ok && v != "" {
			s.Language = v
		}
		if v, ok := m["content"].(string); ok {
			s.Content = v
		}
		out = append(out, s)
	}
	return out
}

func extractDependencies(meta map[string]any) []model.Dependency {
	if meta == nil {
		return nil
	}
	if raw, ok := meta["dependencies"]; ok {
		if items, ok := raw.([]any); ok {
			return dependenciesFromObjects(items)
		}
	}
	if raw, ok := meta["packages"]; ok {
		if items, ok := raw.([]any); ok {
			return dependenciesFromObjects(items)
		}
	}
	if raw, ok := meta["requires"]; ok {
		if items, ok := raw.([]any); ok {
			out := make([]model.Dependency, 0, len(items))
			for _, it := range items {
				if s, ok := it.(string); ok {
					out = append(out, model.Dependency{Name: s, Version: "*"})
				}
			}
			return out
		}
	}
	return nil
}

func dependenciesFromObjects(items []any) []model.Dependency {
	out := make([]model.Dependency, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		d := model.Dependency{Version: "*"}
		if v, ok := m["name"].(string); ok {
			d.Name = v
		}
		if v, ok := m["version"].(string); ok && v != "" {
			d.Version = v
		}
		out = append(out, d)
	}
	return out
}

func extractResources(meta map[string]any, path string) []model.Resource {
	raw := firstPresent(meta, "resources", "relatedFiles")
	if items, ok := raw.([]any); ok {
		out := make([]model.Resource, 0, len(items))
		for _, it := range items {
			switch v := it.(type) {
			case map[string]any:
				r := model.Resource{Type: "file"}
				if s, ok := v["type"].(string); ok && s != "" {
					r.Type = s
				}
				if s, ok := v["path"].(string); ok {
					r.Path = s
				}
				if s, ok := v["description"].(string); ok {
					r.Description = s
				}
				out = append(out, r)
			case string:
				out = append(out, model.Resource{Type: "file", Path: v, Description: v})
			}
		}
		return out
	}
	if meta != nil {
		if raw, ok := meta["dependencies"]; ok {
			if items, ok := raw.([]any); ok {
				out := make([]model.Resource, 0, len(items))
				for _, it := range items {
					if s, ok := it.(string); ok {
						out = append(out, model.Resource{Type: "file", Path: s, Description: s})
					}
				}
				if len(out) > 0 {
					return out
				}
			}
		}
	}
	if path != "" {
		return []model.Resource{{Type: "file", Path: path, Description: path}}
	}
	return nil
}

func joinScriptNames(scripts []model.Script) string {
	return joinStrings(mapScripts(scripts))
}

func mapScripts(scripts []model.Script) []string {
	out := make([]string, len(scripts))
	for i, s := range scripts {
		out[i] = s.Name
	}
	return out
}

func joinDependencyNames(deps []model.Dependency) string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.Name
	}
	return joinStrings(out)
}

func joinResourcePaths(res []model.Resource) string {
	out := make([]string, len(res))
	for i, r := range res {
		out[i] = r.Path
	}
	return joinStrings(out)
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
