package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string) ContextRecord {
	return ContextRecord{ID: id, Text: "text of " + id}
}

func TestFuseRanksPrefersAgreement(t *testing.T) {
	vector := []ContextRecord{rec("a"), rec("b"), rec("c")}
	fulltext := []ContextRecord{rec("c"), rec("d")}

	fused := fuseRanks(vector, fulltext, 10)
	require.Len(t, fused, 4)
	// c is ranked by both, so it beats a despite a's better vector rank.
	assert.Equal(t, "c", fused[0].ID)
	assert.Equal(t, "a", fused[1].ID)
}

func TestFuseRanksTieBreaksOnVectorRank(t *testing.T) {
	// a and b have identical fused scores; a's vector rank is better.
	vector := []ContextRecord{rec("a"), rec("b")}
	fulltext := []ContextRecord{rec("b"), rec("a")}

	fused := fuseRanks(vector, fulltext, 10)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].ID)
	assert.Equal(t, "b", fused[1].ID)
}

func TestFuseRanksIsDeterministic(t *testing.T) {
	vector := []ContextRecord{rec("a"), rec("b"), rec("c")}
	fulltext := []ContextRecord{rec("d"), rec("e"), rec("f")}

	first := fuseRanks(vector, fulltext, 10)
	for i := 0; i < 20; i++ {
		again := fuseRanks(vector, fulltext, 10)
		require.Equal(t, first, again)
	}
}

func TestFuseRanksTruncates(t *testing.T) {
	vector := []ContextRecord{rec("a"), rec("b"), rec("c")}
	fulltext := []ContextRecord{rec("d"), rec("e")}

	fused := fuseRanks(vector, fulltext, 2)
	assert.Len(t, fused, 2)
}

func TestFuseRanksEmptyInputs(t *testing.T) {
	assert.Empty(t, fuseRanks(nil, nil, 5))

	onlyVector := fuseRanks([]ContextRecord{rec("a")}, nil, 5)
	require.Len(t, onlyVector, 1)
	assert.Equal(t, "a", onlyVector[0].ID)
}
