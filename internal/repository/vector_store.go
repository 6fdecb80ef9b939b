package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "rag_documents"

// validateUpsert checks argument shape before anything is written.
func validateUpsert(ids []string, vectors [][]float32, payloads []domain.Payload, dimension int) error {
	if len(ids) != len(vectors) || len(ids) != len(payloads) {
		return domain.NewStorageError("upsert", domain.StorageReasonValidation,
			fmt.Sprintf("ids, vectors and payloads differ in length (%d, %d, %d)", len(ids), len(vectors), len(payloads)), nil)
	}
	for i, id := range ids {
		if id == "" {
			return domain.NewStorageError("upsert", domain.StorageReasonValidation,
				fmt.Sprintf("record %d has an empty id", i), nil)
		}
		if len(vectors[i]) != dimension {
			return domain.NewStorageError("upsert", domain.StorageReasonSchemaMismatch,
				fmt.Sprintf("record %s has %d dimensions, collection expects %d", id, len(vectors[i]), dimension), nil)
		}
	}
	return nil
}

func validateSearch(vector []float32, topK, dimension int) error {
	if topK <= 0 {
		return domain.NewStorageError("search", domain.StorageReasonValidation,
			fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}
	if len(vector) != dimension {
		return domain.NewStorageError("search", domain.StorageReasonSchemaMismatch,
			fmt.Sprintf("query vector has %d dimensions, collection expects %d", len(vector), dimension), nil)
	}
	return nil
}

func dimensionMismatch(collection string, existing, configured int) error {
	return domain.NewConfigurationError(fmt.Sprintf(
		"collection %s has dimension %d, configured dimension is %d", collection, existing, configured))
}

// lastWins drops earlier occurrences of duplicate ids, keeping the order of
// the surviving records.
func lastWins(ids []string, vectors [][]float32, payloads []domain.Payload) ([]string, [][]float32, []domain.Payload) {
	last := make(map[string]int, len(ids))
	for i, id := range ids {
		last[id] = i
	}
	if len(last) == len(ids) {
		return ids, vectors, payloads
	}

	outIDs := make([]string, 0, len(last))
	outVectors := make([][]float32, 0, len(last))
	outPayloads := make([]domain.Payload, 0, len(last))
	for i, id := range ids {
		if last[id] != i {
			continue
		}
		outIDs = append(outIDs, id)
		outVectors = append(outVectors, vectors[i])
		outPayloads = append(outPayloads, payloads[i])
	}
	return outIDs, outVectors, outPayloads
}

// bootstrap remembers a successful collection check for the lifetime of a
// store instance. Failures are not remembered, so the next call retries.
type bootstrap struct {
	mu   sync.Mutex
	done bool
}

func (b *bootstrap) ensure(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return nil
	}
	if err := fn(ctx); err != nil {
		return err
	}
	b.done = true
	return nil
}
