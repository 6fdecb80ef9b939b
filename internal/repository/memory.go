package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

// MemoryVectorStore keeps records in process and searches them by brute-force
// cosine similarity. Ties keep insertion order.
type MemoryVectorStore struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]*domain.EmbeddingRecord
	order     []string
}

func NewMemoryVectorStore(dimension int) *MemoryVectorStore {
	return &MemoryVectorStore{
		dimension: dimension,
		records:   make(map[string]*domain.EmbeddingRecord),
	}
}

func (s *MemoryVectorStore) EnsureCollection(ctx context.Context) error {
	if s.dimension <= 0 {
		return domain.NewConfigurationError("vector dimension must be greater than zero")
	}
	return nil
}

// Upsert validates every record before mutating, so a rejected call leaves
// the store unchanged. An existing id keeps its original insertion position.
func (s *MemoryVectorStore) Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []domain.Payload) error {
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	if err := validateUpsert(ids, vectors, payloads, s.dimension); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		vector := make([]float32, len(vectors[i]))
		copy(vector, vectors[i])
		if _, ok := s.records[id]; !ok {
			s.order = append(s.order, id)
		}
		s.records[id] = &domain.EmbeddingRecord{ID: id, Vector: vector, Payload: payloads[i]}
	}
	return nil
}

func (s *MemoryVectorStore) Search(ctx context.Context, vector []float32, topK int, sourceFilter string) (*domain.RetrievalResult, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	if err := validateSearch(vector, topK, s.dimension); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		record *domain.EmbeddingRecord
		score  float64
	}
	hits := make([]hit, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		if sourceFilter != "" && rec.Payload.Source != sourceFilter {
			continue
		}
		hits = append(hits, hit{record: rec, score: cosine(vector, rec.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if topK > len(hits) {
		topK = len(hits)
	}
	result := domain.NewRetrievalResult(topK)
	for _, h := range hits[:topK] {
		result.Add(h.record.Payload)
	}
	return result, nil
}

// Len returns the number of stored records.
func (s *MemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns a copy of the record with the given id.
func (s *MemoryVectorStore) Get(id string) (domain.EmbeddingRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.EmbeddingRecord{}, false
	}
	return *rec, true
}

// cosine returns 0 when either vector has zero norm.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
