package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

func TestMemoryVectorStore_SearchEmptyCollection(t *testing.T) {
	store := NewMemoryVectorStore(3)

	result, err := store.Search(context.Background(), []float32{1, 0, 0}, 5, "")

	require.NoError(t, err)
	assert.NotNil(t, result.Contexts)
	assert.NotNil(t, result.Sources)
	assert.Equal(t, 0, result.Len())
}

func TestMemoryVectorStore_SearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore(2)

	err := store.Upsert(ctx,
		[]string{"far", "near", "mid"},
		[][]float32{{0, 1}, {1, 0.05}, {1, 1}},
		[]domain.Payload{
			{Source: "a.pdf", Text: "far text"},
			{Source: "a.pdf", Text: "near text"},
			{Source: "b.pdf", Text: "mid text"},
		},
	)
	require.NoError(t, err)

	result, err := store.Search(ctx, []float32{1, 0}, 2, "")

	require.NoError(t, err)
	assert.Equal(t, []string{"near text", "mid text"}, result.Contexts)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, result.Sources)
}

func TestMemoryVectorStore_SearchFewerThanTopK(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore(2)
	require.NoError(t, store.Upsert(ctx, []string{"1"}, [][]float32{{1, 0}}, []domain.Payload{{Source: "s", Text: "only"}}))

	result, err := store.Search(ctx, []float32{1, 0}, 10, "")

	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, result.Contexts)
}

func TestMemoryVectorStore_SourceFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore(2)
	require.NoError(t, store.Upsert(ctx,
		[]string{"1", "2", "3"},
		[][]float32{{1, 0}, {1, 0.1}, {0.5, 0.5}},
		[]domain.Payload{{Source: "a", Text: "a1"}, {Source: "b", Text: "b1"}, {Source: "a", Text: "a2"}},
	))

	result, err := store.Search(ctx, []float32{1, 0}, 5, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, result.Contexts)
	assert.Equal(t, []string{"a", "a"}, result.Sources)

	none, err := store.Search(ctx, []float32{1, 0}, 5, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())
}

func TestMemoryVectorStore_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore(2)
	require.NoError(t, store.Upsert(ctx,
		[]string{"z", "a", "m"},
		[][]float32{{1, 1}, {1, 1}, {1, 1}},
		[]domain.Payload{{Text: "first"}, {Text: "second"}, {Text: "third"}},
	))

	result, err := store.Search(ctx, []float32{1, 1}, 3, "")

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, result.Contexts)
}

func TestMemoryVectorStore_UpsertReplacesExisting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore(2)
	require.NoError(t, store.Upsert(ctx, []string{"id"}, [][]float32{{1, 0}}, []domain.Payload{{Source: "s", Text: "old"}}))
	require.NoError(t, store.Upsert(ctx, []string{"id"}, [][]float32{{0, 1}}, []domain.Payload{{Source: "s", Text: "new"}}))

	assert.Equal(t, 1, store.Len())
	rec, ok := store.Get("id")
	require.True(t, ok)
	assert.Equal(t, "new", rec.Payload.Text)
	assert.Equal(t, []float32{0, 1}, rec.Vector)
}

func TestMemoryVectorStore_DuplicateIDsLastWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore(2)

	require.NoError(t, store.Upsert(ctx,
		[]string{"dup", "dup"},
		[][]float32{{1, 0}, {0, 1}},
		[]domain.Payload{{Text: "first"}, {Text: "last"}},
	))

	assert.Equal(t, 1, store.Len())
	rec, _ := store.Get("dup")
	assert.Equal(t, "last", rec.Payload.Text)
}

func TestMemoryVectorStore_UpsertValidation(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		vectors  [][]float32
		payloads []domain.Payload
		reason   string
	}{
		{
			name:     "length mismatch",
			ids:      []string{"1", "2"},
			vectors:  [][]float32{{1, 0}},
			payloads: []domain.Payload{{}, {}},
			reason:   domain.StorageReasonValidation,
		},
		{
			name:     "empty id",
			ids:      []string{""},
			vectors:  [][]float32{{1, 0}},
			payloads: []domain.Payload{{}},
			reason:   domain.StorageReasonValidation,
		},
		{
			name:     "wrong dimension",
			ids:      []string{"1", "2"},
			vectors:  [][]float32{{1, 0}, {1, 0, 0}},
			payloads: []domain.Payload{{}, {}},
			reason:   domain.StorageReasonSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryVectorStore(2)

			err := store.Upsert(context.Background(), tt.ids, tt.vectors, tt.payloads)

			require.Error(t, err)
			assert.True(t, domain.IsStorageError(err))
			assert.Equal(t, tt.reason, domain.StorageReason(err))
			assert.Equal(t, 0, store.Len(), "rejected upsert must not write")
		})
	}
}

func TestMemoryVectorStore_SearchValidation(t *testing.T) {
	store := NewMemoryVectorStore(2)
	ctx := context.Background()

	_, err := store.Search(ctx, []float32{1, 0}, 0, "")
	assert.Equal(t, domain.StorageReasonValidation, domain.StorageReason(err))

	_, err = store.Search(ctx, []float32{1, 0, 0}, 3, "")
	assert.Equal(t, domain.StorageReasonSchemaMismatch, domain.StorageReason(err))
}

func TestMemoryVectorStore_InvalidDimension(t *testing.T) {
	store := NewMemoryVectorStore(0)

	err := store.EnsureCollection(context.Background())

	assert.True(t, domain.IsConfigurationError(err))
}

func TestMemoryVectorStore_ConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore(2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			assert.NoError(t, store.Upsert(ctx, []string{id}, [][]float32{{float32(i), 1}}, []domain.Payload{{Source: id, Text: id}}))
			_, err := store.Search(ctx, []float32{1, 1}, 3, "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, store.Len())
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 3}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestLastWins(t *testing.T) {
	ids, vectors, payloads := lastWins(
		[]string{"a", "b", "a", "c"},
		[][]float32{{1}, {2}, {3}, {4}},
		[]domain.Payload{{Text: "a1"}, {Text: "b"}, {Text: "a2"}, {Text: "c"}},
	)

	assert.Equal(t, []string{"b", "a", "c"}, ids)
	assert.Equal(t, [][]float32{{2}, {3}, {4}}, vectors)
	assert.Equal(t, "a2", payloads[1].Text)
}
