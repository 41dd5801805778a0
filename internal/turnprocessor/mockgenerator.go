package turnprocessor

import (
	"context"

	loremgen "github.com/bozaro/golorem"
	"github.com/google/uuid"

	"kidscanvas/internal/aiagent"
	"kidscanvas/internal/domain"
)

// MockGenerator is a Generator that fabricates a patch instead of calling
// the real AI-agent service, the same role the teacher's lorem provider
// plays as a stand-in for a real LLM backend.
type MockGenerator struct {
	generator *loremgen.Lorem
	// Labels, if set, is used verbatim as the patch's labels instead of a
	// generated one-word label. Lets tests drive a specific moderation
	// outcome without depending on lorem's random output.
	Labels []string
}

// NewMockGenerator builds a MockGenerator seeded with a fresh lorem source.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{generator: loremgen.New()}
}

// Generate fabricates a patch: a sentence of instructions and either the
// caller-supplied labels or a single generated word.
func (g *MockGenerator) Generate(ctx context.Context, roomID, objectID uuid.UUID, anchor domain.AnchorRing) (*aiagent.GenerateResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	labels := g.Labels
	if labels == nil {
		labels = []string{g.generator.Word(3, 10)}
	}

	cacheDir := "mock://" + objectID.String()
	return &aiagent.GenerateResponse{
		Patch: map[string]any{
			"instructions": g.generator.Sentence(5, 15),
			"labels":       toAnySlice(labels),
		},
		CacheDir: &cacheDir,
	}, nil
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
