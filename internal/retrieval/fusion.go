package retrieval

import "sort"

// rrfK dampens the contribution of deep ranks in reciprocal rank fusion.
const rrfK = 60

// fuseRanks merges a vector ranking and a full-text ranking with reciprocal
// rank fusion. Ties break on vector rank first, then on chunk ID, so the
// fused order is deterministic for identical inputs.
func fuseRanks(vector, fulltext []ContextRecord, topK int) []ContextRecord {
	type fused struct {
		record     ContextRecord
		score      float64
		vectorRank int // len(vector) when absent from the vector ranking
	}

	byID := make(map[string]*fused)

	for rank, rec := range vector {
		byID[rec.ID] = &fused{
			record:     rec,
			score:      1.0 / float64(rrfK+rank+1),
			vectorRank: rank,
		}
	}
	for rank, rec := range fulltext {
		contribution := 1.0 / float64(rrfK+rank+1)
		if f, ok := byID[rec.ID]; ok {
			f.score += contribution
			continue
		}
		byID[rec.ID] = &fused{
			record:     rec,
			score:      contribution,
			vectorRank: len(vector),
		}
	}

	all := make([]*fused, 0, len(byID))
	for _, f := range byID {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		if all[i].vectorRank != all[j].vectorRank {
			return all[i].vectorRank < all[j].vectorRank
		}
		return all[i].record.ID < all[j].record.ID
	})

	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}
	records := make([]ContextRecord, len(all))
	for i, f := range all {
		rec := f.record
		rec.Score = f.score
		records[i] = rec
	}
	return records
}
