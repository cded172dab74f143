package cmd

import "github.com/suntianc/toolcore/internal/model"

// levelFromString maps a CLI/MCP --level string onto a disclosure
// level, defaulting to METADATA for anything unrecognized.
func levelFromString(s string) model.DisclosureLevel {
	switch s {
	case "content", "CONTENT":
		return model.LevelContent
	case "resources", "RESOURCES":
		return model.LevelResources
	default:
		return model.LevelMetadata
	}
}
