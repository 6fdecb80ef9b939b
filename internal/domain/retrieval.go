package domain

// Chunk is a contiguous piece of a document's extracted text.
type Chunk struct {
	Index int
	Text  string
}

// Payload is the metadata persisted next to each vector.
type Payload struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// EmbeddingRecord is the unit persisted in a vector store collection.
type EmbeddingRecord struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// RetrievalResult holds the texts and source ids of the best matching chunks,
// best match first. Contexts and Sources always have the same length.
type RetrievalResult struct {
	Contexts []string `json:"contexts"`
	Sources  []string `json:"sources"`
}

// maxPreallocatedHits bounds the capacity reserved up front; callers pass the
// requested top-k, which can be far larger than the number of stored records.
const maxPreallocatedHits = 128

// NewRetrievalResult returns an empty result with non-nil slices.
func NewRetrievalResult(capacity int) *RetrievalResult {
	capacity = max(0, min(capacity, maxPreallocatedHits))
	return &RetrievalResult{
		Contexts: make([]string, 0, capacity),
		Sources:  make([]string, 0, capacity),
	}
}

// Add appends a hit to the result.
func (r *RetrievalResult) Add(p Payload) {
	r.Contexts = append(r.Contexts, p.Text)
	r.Sources = append(r.Sources, p.Source)
}

// Len returns the number of hits.
func (r *RetrievalResult) Len() int {
	return len(r.Contexts)
}

// Answer is a generated answer together with the sources it was grounded on.
type Answer struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NumContexts int      `json:"num_contexts"`
}
