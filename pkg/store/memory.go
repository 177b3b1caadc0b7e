package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Memory is a mutex-guarded in-memory GoldenStore with copy-on-write batch
// transactions. It backs tests and embedded single-process deployments.
type Memory struct {
	mu         sync.RWMutex
	goldens    map[string]*models.GoldenRecord
	rollback   []models.RollbackEntry
	conflicts  []models.ConflictEntry
	quarantine []models.QuarantineRecord
	review     []models.ReviewCandidate
	violations []models.RuleViolation
	scores     []models.QualityScore
	committed  []string // batch ids, oldest first
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{goldens: make(map[string]*models.GoldenRecord)}
}

func (m *Memory) Get(_ context.Context, goldenID string) (*models.GoldenRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goldens[goldenID]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) List(_ context.Context) ([]*models.GoldenRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.GoldenRecord, 0, len(m.goldens))
	for _, g := range m.goldens {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GoldenID < out[j].GoldenID })
	return out, nil
}

func (m *Memory) RollbackEntries(_ context.Context, batchID string) ([]models.RollbackEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RollbackEntry
	for _, e := range m.rollback {
		if e.BatchID == batchID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (m *Memory) CommittedBatches(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for i := len(m.committed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.committed[i])
	}
	return out, nil
}

func (m *Memory) Violations(_ context.Context) ([]models.RuleViolation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RuleViolation, len(m.violations))
	copy(out, m.violations)
	return out, nil
}

func (m *Memory) Scores(_ context.Context) ([]models.QualityScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.QualityScore, len(m.scores))
	copy(out, m.scores)
	return out, nil
}

func (m *Memory) ReviewQueue(_ context.Context) ([]models.ReviewCandidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ReviewCandidate, len(m.review))
	copy(out, m.review)
	return out, nil
}

// Begin serializes writers: the store lock is held until Commit or Rollback,
// which is the single-writer discipline the loader expects.
func (m *Memory) Begin(_ context.Context) (BatchTx, error) {
	m.mu.Lock()

	tx := &memoryTx{store: m, goldens: make(map[string]*models.GoldenRecord, len(m.goldens))}
	for id, g := range m.goldens {
		tx.goldens[id] = g // copy-on-write; Upsert clones before mutation
	}
	tx.rollback = append(tx.rollback, m.rollback...)
	tx.conflicts = append(tx.conflicts, m.conflicts...)
	tx.quarantine = append(tx.quarantine, m.quarantine...)
	tx.review = append(tx.review, m.review...)
	tx.violations = append(tx.violations, m.violations...)
	tx.scores = append(tx.scores, m.scores...)
	tx.committed = append(tx.committed, m.committed...)
	return tx, nil
}

type memoryTx struct {
	store      *Memory
	closed     bool
	goldens    map[string]*models.GoldenRecord
	rollback   []models.RollbackEntry
	conflicts  []models.ConflictEntry
	quarantine []models.QuarantineRecord
	review     []models.ReviewCandidate
	violations []models.RuleViolation
	scores     []models.QualityScore
	committed  []string
}

func (t *memoryTx) Upsert(_ context.Context, golden *models.GoldenRecord) error {
	t.goldens[golden.GoldenID] = golden.Clone()
	return nil
}

func (t *memoryTx) Remove(_ context.Context, goldenID string) error {
	delete(t.goldens, goldenID)
	return nil
}

func (t *memoryTx) AppendRollback(_ context.Context, entry models.RollbackEntry) error {
	t.rollback = append(t.rollback, entry)
	return nil
}

func (t *memoryTx) AppendConflicts(_ context.Context, entries []models.ConflictEntry) error {
	t.conflicts = append(t.conflicts, entries...)
	return nil
}

func (t *memoryTx) AddQuarantine(_ context.Context, records []models.QuarantineRecord) error {
	t.quarantine = append(t.quarantine, records...)
	return nil
}

func (t *memoryTx) AddReviewCandidates(_ context.Context, candidates []models.ReviewCandidate) error {
	pending := make(map[string]bool)
	for _, c := range t.review {
		if c.Status == models.ReviewStatusPending {
			pending[c.RecordA+"|"+c.RecordB+"|"+c.Reason] = true
		}
	}
	for _, c := range candidates {
		key := c.RecordA + "|" + c.RecordB + "|" + c.Reason
		if pending[key] {
			continue
		}
		pending[key] = true
		t.review = append(t.review, c)
	}
	return nil
}

func (t *memoryTx) SupersedeViolations(_ context.Context, violations []models.RuleViolation, scores []models.QualityScore) error {
	t.violations = append([]models.RuleViolation(nil), violations...)
	t.scores = append([]models.QualityScore(nil), scores...)
	return nil
}

func (t *memoryTx) PruneRollback(_ context.Context, retainBatches int) error {
	if len(t.committed) <= retainBatches {
		return nil
	}
	retained := make(map[string]bool, retainBatches)
	for _, id := range t.committed[len(t.committed)-retainBatches:] {
		retained[id] = true
	}
	var kept []models.RollbackEntry
	for _, e := range t.rollback {
		if retained[e.BatchID] {
			kept = append(kept, e)
		}
	}
	t.rollback = kept
	return nil
}

func (t *memoryTx) MarkCommitted(_ context.Context, batchID string) error {
	t.committed = append(t.committed, batchID)
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true

	s := t.store
	s.goldens = t.goldens
	s.rollback = t.rollback
	s.conflicts = t.conflicts
	s.quarantine = t.quarantine
	s.review = t.review
	s.violations = t.violations
	s.scores = t.scores
	s.committed = t.committed
	s.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.store.mu.Unlock()
	return nil
}
