package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

var errQdrantNotFound = errors.New("qdrant: not found")

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// QdrantStore is a REST client for a Qdrant collection using cosine distance.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	boot       bootstrap
}

func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	return &QdrantStore{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

type qdrantCollectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload domain.Payload `json:"payload"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload domain.Payload `json:"payload"`
	} `json:"result"`
}

// EnsureCollection creates the collection when it does not exist. An existing
// collection is never recreated.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	return s.boot.ensure(ctx, s.ensureCollection)
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	if s.dimension <= 0 {
		return domain.NewConfigurationError("vector dimension must be greater than zero")
	}

	err := s.checkCollection(ctx)
	if !errors.Is(err, errQdrantNotFound) {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	status, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	if err != nil {
		return domain.NewStorageError("ensure_collection", domain.StorageReasonConnectivity, "create collection failed", err)
	}
	// Another process created it first.
	if status == http.StatusConflict {
		return s.checkCollection(ctx)
	}
	if status >= 300 {
		return qdrantStatusError("ensure_collection", status)
	}
	return nil
}

func (s *QdrantStore) checkCollection(ctx context.Context) error {
	var info qdrantCollectionInfo
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
	if err != nil {
		return domain.NewStorageError("ensure_collection", domain.StorageReasonConnectivity, "get collection failed", err)
	}
	if status == http.StatusNotFound {
		return errQdrantNotFound
	}
	if status >= 300 {
		return qdrantStatusError("ensure_collection", status)
	}

	vectors := info.Result.Config.Params.Vectors
	if vectors.Size != s.dimension {
		return dimensionMismatch(s.collection, vectors.Size, s.dimension)
	}
	if vectors.Distance != "" && !strings.EqualFold(vectors.Distance, "Cosine") {
		return domain.NewConfigurationError(fmt.Sprintf("collection %s uses %s distance, expected Cosine", s.collection, vectors.Distance))
	}
	return nil
}

// Upsert sends all points in one request and waits for it to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []domain.Payload) error {
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	if err := validateUpsert(ids, vectors, payloads, s.dimension); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	ids, vectors, payloads = lastWins(ids, vectors, payloads)
	points := make([]qdrantPoint, len(ids))
	for i := range ids {
		points[i] = qdrantPoint{ID: ids[i], Vector: vectors[i], Payload: payloads[i]}
	}

	status, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
	if err != nil {
		return domain.NewStorageError("upsert", domain.StorageReasonConnectivity, "upsert request failed", err)
	}
	if status >= 300 {
		return qdrantStatusError("upsert", status)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int, sourceFilter string) (*domain.RetrievalResult, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	if err := validateSearch(vector, topK, s.dimension); err != nil {
		return nil, err
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if sourceFilter != "" {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "source", "match": map[string]any{"value": sourceFilter}},
			},
		}
	}

	var resp qdrantSearchResponse
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp)
	if err != nil {
		return nil, domain.NewStorageError("search", domain.StorageReasonConnectivity, "search request failed", err)
	}
	if status >= 300 {
		return nil, qdrantStatusError("search", status)
	}

	result := domain.NewRetrievalResult(len(resp.Result))
	for _, r := range resp.Result {
		result.Add(r.Payload)
	}
	return result, nil
}

func (s *QdrantStore) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, url.PathEscape(s.collection), suffix)
}

// do sends body as JSON and decodes a 2xx response into out. Non-2xx
// statuses are returned without an error for the caller to classify.
func (s *QdrantStore) do(ctx context.Context, method, target string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s response: %w", method, target, err)
	}
	return resp.StatusCode, nil
}

func qdrantStatusError(op string, status int) error {
	reason := domain.StorageReasonConnectivity
	if status >= 400 && status < 500 {
		reason = domain.StorageReasonValidation
	}
	return domain.NewStorageError(op, reason, fmt.Sprintf("qdrant returned %d %s", status, http.StatusText(status)), nil)
}
