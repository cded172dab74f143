package vectorstore

import (
	"context"

	"github.com/suntianc/toolcore/internal/model"
)

// TextEmbedder is the minimal injected embedding-generator contract: it
// turns a query string into a vector in the table's embedding space.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher adapts a Manager and a TextEmbedder into
// internal/retrieval.VectorSearcher, converting cosine distance into a
// [0,1] similarity score and applying the method's min_score cutoff.
type Searcher struct {
	manager  *Manager
	embedder TextEmbedder
}

// NewSearcher constructs a Searcher.
func NewSearcher(manager *Manager, embedder TextEmbedder) *Searcher {
	return &Searcher{manager: manager, embedder: embedder}
}

// Search embeds query, issues a nearest-neighbor lookup, and converts
// each row's distance to a similarity score via 1/(1+distance), dropping
// rows below minScore and truncating to limit.
func (s *Searcher) Search(ctx context.Context, query string, limit int, minScore float64) ([]model.RetrievalResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.manager.Search(ctx, vec, limit)
	if err != nil {
		return nil, err
	}

	out := make([]model.RetrievalResult, 0, len(rows))
	for _, row := range rows {
		score := 1.0 / (1.0 + row.Distance)
		if score < minScore {
			continue
		}
		out = append(out, model.RetrievalResult{
			ID:          row.Tool.ID,
			Score:       score,
			Name:        row.Tool.Name,
			Description: row.Tool.Description,
			Tags:        row.Tool.Tags,
			ToolType:    row.Tool.ToolType,
			Path:        row.Tool.Path,
			Version:     row.Tool.Version,
			Metadata:    row.Tool.Metadata,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
