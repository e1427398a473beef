package agent

import (
	"context"
	"math"
	"sort"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/types"
)

// cosineSimilarity over equal-length vectors; zero for mismatched or
// zero-magnitude inputs, which ranks unusable memories last.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// rankMemories orders memories by similarity to the query vector and keeps
// the top limit entries.
func rankMemories(memories []*types.Memory, query []float32, limit int) []*types.Memory {
	ranked := make([]*types.Memory, len(memories))
	copy(ranked, memories)
	sort.SliceStable(ranked, func(i, j int) bool {
		return cosineSimilarity(ranked[i].Vector, query) > cosineSimilarity(ranked[j].Vector, query)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// relevantMemories retrieves the agent's recollections most related to a
// conversation with the given partner.
func (s *Service) relevantMemories(ctx context.Context, playerID types.ID, partnerName string) ([]*types.Memory, error) {
	memories, err := s.cfg.Database.MemoriesForPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return nil, nil
	}
	query, err := s.cfg.LLM.EmbedOne(ctx, "conversation with "+partnerName)
	if err != nil {
		return nil, err
	}
	return rankMemories(memories, query, params.TownConfig().MemoryRelevantCount), nil
}
