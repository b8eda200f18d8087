// Package docstore adapts the booking engine's document model onto a
// key/value store. Documents are flat string-keyed field maps; transactions
// are optimistic: a transaction re-validates every document it read at commit
// time and the runner retries a bounded number of times before surfacing a
// PersistenceError.
package docstore

import "context"

// ServerTimestamp is the sentinel field value replaced with the store's
// current time at write time. Used for create-time stamping so callers never
// supply their own clock.
const ServerTimestamp = "__server_timestamp__"

// Snapshot is the state of one document as observed by a read.
type Snapshot struct {
	Path   Path
	Exists bool
	Fields map[string]string
}

// Predicate operators supported by Query.
const (
	OpEq = "=="
	OpGt = ">"
)

// Predicate filters query results on a stored field. Range comparison is
// lexicographic, which matches time order for wire-encoded timestamps.
type Predicate struct {
	Field string
	Op    string
	Value string
}

// Tx is the view of the store inside one transaction. Reads observe a
// consistent snapshot and register the document for commit-time validation;
// writes are buffered and applied atomically as a set iff validation passes.
type Tx interface {
	Get(ctx context.Context, p Path) (Snapshot, error)

	// Set replaces the whole document. A document with zero fields is
	// deleted: an empty document and an absent one are the same state.
	Set(p Path, fields map[string]string)

	// Update merges the given fields into an existing document. The commit
	// fails if the document does not exist.
	Update(p Path, fields map[string]string)

	// Increment adds delta to an integer field. Existence of the document
	// is the caller's concern: read it first so the transaction conflicts
	// with a concurrent delete instead of resurrecting the document.
	Increment(p Path, field string, delta int64)

	Delete(p Path)
}

// Store is the transactional document store consumed by the booking engine.
type Store interface {
	Get(ctx context.Context, p Path) (Snapshot, error)
	Set(ctx context.Context, p Path, fields map[string]string) error
	Update(ctx context.Context, p Path, fields map[string]string) error
	Delete(ctx context.Context, p Path) error

	// Increment atomically adds delta to an integer field.
	Increment(ctx context.Context, p Path, field string, delta int64) error

	// Query returns the documents of a collection matching every predicate.
	Query(ctx context.Context, collection Path, preds ...Predicate) ([]Snapshot, error)

	// RunTransaction executes fn as one atomic unit. Errors returned by fn
	// abort the transaction wholesale and are returned unchanged; pure
	// write conflicts are retried transparently up to the store's budget.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

func matches(fields map[string]string, preds []Predicate) bool {
	for _, pr := range preds {
		v, ok := fields[pr.Field]
		switch pr.Op {
		case OpEq:
			if v != pr.Value {
				return false
			}
		case OpGt:
			if !ok || v <= pr.Value {
				return false
			}
		default:
			return false
		}
	}
	return true
}
