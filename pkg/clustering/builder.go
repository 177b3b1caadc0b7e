// Package clustering groups accepted match candidates into identity clusters.
// Identity formation is union-find over stable integer indices rather than a
// pointer graph, which keeps the cyclic structure out of the object model.
package clustering

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Builder forms identity clusters from accepted candidates
type Builder struct {
	cfg    models.ReconcileConfig
	logger ectologger.Logger
}

// NewBuilder creates a cluster builder for one batch run
func NewBuilder(cfg models.ReconcileConfig, logger ectologger.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logger}
}

// Result holds the clusters plus any edges demoted to review status by the
// size guard. Demoted edges are never silently dropped.
type Result struct {
	Clusters    []models.IdentityCluster
	ReviewEdges []models.MatchCandidate
}

// Build unions records along accept-decision edges only, then splits any
// cluster exceeding the configured maximum size. Every record appears in
// exactly one cluster; unmatched records form singletons. Output ordering is
// deterministic for identical input.
func (b *Builder) Build(ctx context.Context, records []models.NormalizedRecord, candidates []models.MatchCandidate) Result {
	ctx, span := tracing.StartSpan(ctx, "clustering.Builder.Build")
	defer span.End()

	refs := make([]models.MemberRef, len(records))
	index := make(map[string]int, len(records))
	for i, r := range records {
		refs[i] = r.Record.Ref()
		index[refs[i].Key()] = i
	}

	accepted := acceptedEdges(candidates)

	uf := newUnionFind(len(refs))
	for _, edge := range accepted {
		a, okA := index[edge.RecordA.Key()]
		c, okC := index[edge.RecordB.Key()]
		if okA && okC {
			uf.union(a, c)
		}
	}

	// Group members and edges per settled component
	componentMembers := make(map[int][]int)
	for i := range refs {
		root := uf.find(i)
		componentMembers[root] = append(componentMembers[root], i)
	}
	componentEdges := make(map[int][]models.MatchCandidate)
	for _, edge := range accepted {
		if a, ok := index[edge.RecordA.Key()]; ok {
			if _, ok := index[edge.RecordB.Key()]; ok {
				componentEdges[uf.find(a)] = append(componentEdges[uf.find(a)], edge)
			}
		}
	}

	var result Result
	for root, members := range componentMembers {
		if len(members) <= b.cfg.MaxClusterSize {
			result.Clusters = append(result.Clusters, b.cluster(refs, members, componentEdges[root]))
			continue
		}
		b.split(refs, index, members, componentEdges[root], &result)
	}

	sortClusters(result.Clusters)
	matching.SortCandidates(result.ReviewEdges)

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"records":      len(records),
		"clusters":     len(result.Clusters),
		"review_edges": len(result.ReviewEdges),
	}).Info("Built identity clusters")

	return result
}

// split rebuilds an oversized component by re-adding its edges from highest
// similarity down, skipping any edge that would push a sub-cluster past the
// bound. Skipped edges are re-emitted as review candidates for manual
// adjudication; a single bad blocking key must not collapse unrelated
// entities.
func (b *Builder) split(refs []models.MemberRef, index map[string]int, members []int, edges []models.MatchCandidate, result *Result) {
	ordered := make([]models.MatchCandidate, len(edges))
	copy(ordered, edges)
	matching.SortCandidates(ordered)

	uf := newUnionFind(len(refs))
	for _, edge := range ordered {
		a := index[edge.RecordA.Key()]
		c := index[edge.RecordB.Key()]
		if uf.connected(a, c) {
			continue
		}
		if uf.setSize(a)+uf.setSize(c) > b.cfg.MaxClusterSize {
			demoted := edge
			demoted.Decision = models.MatchDecisionReview
			result.ReviewEdges = append(result.ReviewEdges, demoted)
			continue
		}
		uf.union(a, c)
	}

	subMembers := make(map[int][]int)
	for _, m := range members {
		root := uf.find(m)
		subMembers[root] = append(subMembers[root], m)
	}
	subEdges := make(map[int][]models.MatchCandidate)
	for _, edge := range ordered {
		a := index[edge.RecordA.Key()]
		c := index[edge.RecordB.Key()]
		if uf.connected(a, c) {
			subEdges[uf.find(a)] = append(subEdges[uf.find(a)], edge)
		}
	}

	for root, sub := range subMembers {
		result.Clusters = append(result.Clusters, b.cluster(refs, sub, subEdges[root]))
	}
}

func (b *Builder) cluster(refs []models.MemberRef, members []int, edges []models.MatchCandidate) models.IdentityCluster {
	cluster := models.IdentityCluster{
		Members: make([]models.MemberRef, 0, len(members)),
	}
	for _, m := range members {
		cluster.Members = append(cluster.Members, refs[m])
	}
	sort.Slice(cluster.Members, func(i, j int) bool {
		return cluster.Members[i].Key() < cluster.Members[j].Key()
	})

	cluster.Edges = make([]models.MatchCandidate, len(edges))
	copy(cluster.Edges, edges)
	matching.SortCandidates(cluster.Edges)
	return cluster
}

func acceptedEdges(candidates []models.MatchCandidate) []models.MatchCandidate {
	var accepted []models.MatchCandidate
	for _, c := range candidates {
		if c.Decision == models.MatchDecisionAccept {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

func sortClusters(clusters []models.IdentityCluster) {
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Members[0].Key() < clusters[j].Members[0].Key()
	})
}
