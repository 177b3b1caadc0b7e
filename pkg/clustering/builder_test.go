package clustering

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testConfig(maxSize int) models.ReconcileConfig {
	return models.ReconcileConfig{
		AcceptThreshold: 0.85,
		ReviewThreshold: 0.7,
		MaxClusterSize:  maxSize,
	}.WithDefaults()
}

func record(sourceID, recordID string) models.NormalizedRecord {
	return models.NormalizedRecord{
		Record: &models.SourceRecord{
			SourceID:        sourceID,
			SourceRecordID:  recordID,
			Attributes:      map[string]any{},
			IngestTimestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func edge(a, b models.NormalizedRecord, sim float64, decision models.MatchDecision) models.MatchCandidate {
	return models.MatchCandidate{
		RecordA:    a.Record.Ref(),
		RecordB:    b.Record.Ref(),
		Similarity: sim,
		Basis:      models.MatchBasisFuzzyNameInstitution,
		Decision:   decision,
	}
}

func TestBuilder_TransitiveClusters(t *testing.T) {
	builder := NewBuilder(testConfig(10), testLogger())

	a := record("src_a", "1")
	b := record("src_b", "2")
	c := record("src_c", "3")
	d := record("src_d", "4")

	// a-b and b-c accepted: a,b,c form one cluster transitively. d is alone.
	result := builder.Build(context.Background(), []models.NormalizedRecord{a, b, c, d}, []models.MatchCandidate{
		edge(a, b, 0.9, models.MatchDecisionAccept),
		edge(b, c, 0.95, models.MatchDecisionAccept),
		edge(c, d, 0.75, models.MatchDecisionReview), // review edges never merge
	})

	require.Len(t, result.Clusters, 2)
	assert.Equal(t, []string{"src_a:1", "src_b:2", "src_c:3"}, result.Clusters[0].MemberKeys())
	assert.Equal(t, []string{"src_d:4"}, result.Clusters[1].MemberKeys())
	assert.Empty(t, result.ReviewEdges)
}

func TestBuilder_RejectEdgesNeverMerge(t *testing.T) {
	builder := NewBuilder(testConfig(10), testLogger())

	a := record("src_a", "1")
	b := record("src_b", "2")

	result := builder.Build(context.Background(), []models.NormalizedRecord{a, b}, []models.MatchCandidate{
		edge(a, b, 0.4, models.MatchDecisionReject),
	})

	require.Len(t, result.Clusters, 2)
	for _, c := range result.Clusters {
		assert.Len(t, c.Members, 1)
	}
}

func TestBuilder_OversizedClusterSplit(t *testing.T) {
	builder := NewBuilder(testConfig(2), testLogger())

	// Chain of four records; the weakest edge must be demoted to review so no
	// sub-cluster exceeds two members.
	recs := make([]models.NormalizedRecord, 4)
	for i := range recs {
		recs[i] = record("src_a", fmt.Sprintf("%d", i))
	}
	edges := []models.MatchCandidate{
		edge(recs[0], recs[1], 0.99, models.MatchDecisionAccept),
		edge(recs[1], recs[2], 0.86, models.MatchDecisionAccept), // weakest link
		edge(recs[2], recs[3], 0.97, models.MatchDecisionAccept),
	}

	result := builder.Build(context.Background(), recs, edges)

	require.Len(t, result.Clusters, 2)
	for _, c := range result.Clusters {
		assert.LessOrEqual(t, len(c.Members), 2)
	}
	require.Len(t, result.ReviewEdges, 1)
	assert.Equal(t, models.MatchDecisionReview, result.ReviewEdges[0].Decision)
	assert.Equal(t, 0.86, result.ReviewEdges[0].Similarity)
}

func TestBuilder_ClusterConnectivityInvariant(t *testing.T) {
	builder := NewBuilder(testConfig(5), testLogger())

	recs := make([]models.NormalizedRecord, 6)
	for i := range recs {
		recs[i] = record("src_a", fmt.Sprintf("%d", i))
	}
	edges := []models.MatchCandidate{
		edge(recs[0], recs[1], 0.9, models.MatchDecisionAccept),
		edge(recs[2], recs[3], 0.9, models.MatchDecisionAccept),
		edge(recs[3], recs[4], 0.9, models.MatchDecisionAccept),
	}

	result := builder.Build(context.Background(), recs, edges)

	// Every multi-member cluster must be internally connected via its own
	// accept edges.
	for _, cluster := range result.Clusters {
		if len(cluster.Members) == 1 {
			continue
		}
		reachable := map[string]bool{cluster.Members[0].Key(): true}
		for changed := true; changed; {
			changed = false
			for _, e := range cluster.Edges {
				ka, kb := e.RecordA.Key(), e.RecordB.Key()
				if reachable[ka] && !reachable[kb] {
					reachable[kb] = true
					changed = true
				}
				if reachable[kb] && !reachable[ka] {
					reachable[ka] = true
					changed = true
				}
			}
		}
		for _, m := range cluster.Members {
			assert.True(t, reachable[m.Key()], "member %s not reachable", m.Key())
		}
	}
}

func TestBuilder_Deterministic(t *testing.T) {
	builder := NewBuilder(testConfig(3), testLogger())

	recs := make([]models.NormalizedRecord, 8)
	for i := range recs {
		recs[i] = record("src_a", fmt.Sprintf("%d", i))
	}
	var edges []models.MatchCandidate
	for i := 0; i < 7; i++ {
		edges = append(edges, edge(recs[i], recs[i+1], 0.86+float64(i)*0.01, models.MatchDecisionAccept))
	}

	first := builder.Build(context.Background(), recs, edges)
	second := builder.Build(context.Background(), recs, edges)
	assert.Equal(t, first, second)
}
