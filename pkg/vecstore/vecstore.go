// Package vecstore provides a vector nearest-neighbor search interface and
// implementations.
//
// The [Index] interface defines the contract for vector storage and search.
// The in-memory brute-force index ([NewMemory]) is exact and fast for the
// small vector counts the projector trains on (tens to low thousands); the
// interface leaves room for an approximate backend should corpora outgrow
// that.
package vecstore

// Index is the interface for nearest-neighbor search over dense float32
// vectors.
//
// All implementations must be safe for concurrent use.
type Index interface {
	// Insert adds or updates a vector with the given ID.
	Insert(id string, vector []float32) error

	// BatchInsert adds or updates multiple vectors at once.
	// ids and vectors must have the same length.
	BatchInsert(ids []string, vectors [][]float32) error

	// Search returns the top-k nearest vectors to the query.
	// Results are ordered by ascending distance (closest first).
	Search(query []float32, topK int) ([]Match, error)

	// Delete removes a vector by ID. No error if ID does not exist.
	Delete(id string) error

	// Len returns the number of vectors in the index.
	Len() int

	// Flush ensures all pending writes are visible to subsequent searches.
	// For in-memory implementations this is typically a no-op.
	Flush() error

	// Close releases resources held by the index.
	Close() error
}

// Match is a single result from a vector similarity search.
type Match struct {
	// ID is the identifier of the matched vector.
	ID string

	// Distance is the distance between the query and matched vector.
	// Lower values indicate higher similarity.
	Distance float32
}

// DistanceFunc measures the distance between two vectors of equal dimension.
// Lower is closer.
type DistanceFunc func(a, b []float32) float32
