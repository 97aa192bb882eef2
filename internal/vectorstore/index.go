package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Sentinel errors for index operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidPayload indicates a record payload failed validation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrDimensionMismatch indicates a vector whose width differs from the collection's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrConnectionFailed indicates the index backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to index")
)

// MaxPayloadLen bounds Payload.Name and Payload.Label in runes.
const MaxPayloadLen = 512

// collectionNamePattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Payload is the fixed schema stored next to every vector.
type Payload struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Validate rejects empty or oversized fields.
func (p Payload) Validate() error {
	if p.Name == "" || p.Label == "" {
		return fmt.Errorf("%w: name and label are required", ErrInvalidPayload)
	}
	if utf8.RuneCountInString(p.Name) > MaxPayloadLen || utf8.RuneCountInString(p.Label) > MaxPayloadLen {
		return fmt.Errorf("%w: name and label must be at most %d characters", ErrInvalidPayload, MaxPayloadLen)
	}
	return nil
}

// Record is one vector keyed by the id of the catalog row it was derived from.
type Record struct {
	ID      int64
	Vector  []float32
	Payload Payload
}

// Hit is one nearest-neighbour result.
type Hit struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// Index is a derived similarity index over catalog rows. It is never
// authoritative: every record can be rebuilt by re-embedding its source row.
//
// Collections use cosine similarity. Upsert and Delete are idempotent.
type Index interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, dims int) error

	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Search returns up to k hits in non-increasing score order.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error)

	// Lookup returns the payload stored for id. A missing id is not an error.
	Lookup(ctx context.Context, collection string, id int64) (Payload, bool, error)

	// Delete removes ids. Missing ids are ignored.
	Delete(ctx context.Context, collection string, ids ...int64) error

	// DeleteAll empties the collection, keeping its configuration.
	DeleteAll(ctx context.Context, collection string) error

	Count(ctx context.Context, collection string) (int, error)

	// IDs lists every record id in the collection, in no particular order.
	IDs(ctx context.Context, collection string) ([]int64, error)

	Close() error
}

// ValidateCollectionName validates a collection name against ^[a-z0-9_]{1,64}$.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

func validateRecords(records []Record, dims int) error {
	for i, r := range records {
		if r.ID <= 0 {
			return fmt.Errorf("record %d: id must be positive, got %d", i, r.ID)
		}
		if err := r.Payload.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if dims > 0 && len(r.Vector) != dims {
			return fmt.Errorf("record %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(r.Vector), dims)
		}
	}
	return nil
}

// maxK caps k to prevent resource exhaustion.
const maxK = 10000

func clampK(k int) (int, error) {
	if k <= 0 {
		return 0, fmt.Errorf("k must be positive, got %d", k)
	}
	return min(k, maxK), nil
}
