package docstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/booking-redis/internal/domain"
)

// MemoryStore is an in-process Store with the same optimistic-concurrency
// semantics as the Redis adapter: every document carries a version, a
// transaction records the version of everything it read, and commit fails if
// any of them moved. Tests run against it without external infrastructure.
type MemoryStore struct {
	mu         sync.Mutex
	docs       map[string]memDoc
	versions   map[string]uint64
	maxRetries int
	now        func() time.Time
}

type memDoc struct {
	path   Path
	fields map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:       make(map[string]memDoc),
		versions:   make(map[string]uint64),
		maxRetries: 5,
		now:        time.Now,
	}
}

// SetNow overrides the clock used for server timestamps.
func (s *MemoryStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(ctx context.Context, p Path) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(p), nil
}

func (s *MemoryStore) Set(ctx context.Context, p Path, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(p, fields)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, p Path, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(p, fields)
}

func (s *MemoryStore) Delete(ctx context.Context, p Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(p)
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, p Path, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incrementLocked(p, field, delta)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection Path, preds ...Predicate) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Snapshot
	for _, doc := range s.docs {
		if doc.path.Collection() != collection {
			continue
		}
		if !matches(doc.fields, preds) {
			continue
		}
		out = append(out, Snapshot{Path: doc.path, Exists: true, Fields: copyFields(doc.fields)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.Key() < out[j].Path.Key() })
	return out, nil
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &domain.PersistenceError{Op: "transaction", Err: err}
		}
		tx := &memTx{store: s, reads: make(map[string]uint64)}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		committed, err := s.commit(tx)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
	}
	return &domain.PersistenceError{Op: "transaction", Err: errors.New("optimistic retry budget exhausted")}
}

func (s *MemoryStore) commit(tx *memTx) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range tx.reads {
		if s.versions[key] != version {
			return false, nil
		}
	}
	for _, w := range tx.writes {
		switch w.op {
		case opSet:
			s.setLocked(w.path, w.fields)
		case opUpdate:
			if err := s.updateLocked(w.path, w.fields); err != nil {
				return false, err
			}
		case opDelete:
			s.deleteLocked(w.path)
		case opIncrement:
			s.incrementLocked(w.path, w.field, w.delta)
		}
	}
	return true, nil
}

func (s *MemoryStore) snapshotLocked(p Path) Snapshot {
	doc, ok := s.docs[p.Key()]
	if !ok {
		return Snapshot{Path: p, Exists: false}
	}
	return Snapshot{Path: p, Exists: true, Fields: copyFields(doc.fields)}
}

func (s *MemoryStore) setLocked(p Path, fields map[string]string) {
	s.versions[p.Key()]++
	if len(fields) == 0 {
		delete(s.docs, p.Key())
		return
	}
	stamped := make(map[string]string, len(fields))
	for k, v := range fields {
		if v == ServerTimestamp {
			v = FormatTime(s.now())
		}
		stamped[k] = v
	}
	s.docs[p.Key()] = memDoc{path: p, fields: stamped}
}

func (s *MemoryStore) updateLocked(p Path, fields map[string]string) error {
	doc, ok := s.docs[p.Key()]
	if !ok {
		return &domain.NotFoundError{Kind: string(p.Kind())}
	}
	for k, v := range fields {
		if v == ServerTimestamp {
			v = FormatTime(s.now())
		}
		doc.fields[k] = v
	}
	s.docs[p.Key()] = doc
	s.versions[p.Key()]++
	return nil
}

func (s *MemoryStore) deleteLocked(p Path) {
	delete(s.docs, p.Key())
	s.versions[p.Key()]++
}

func (s *MemoryStore) incrementLocked(p Path, field string, delta int64) {
	doc, ok := s.docs[p.Key()]
	if !ok {
		doc = memDoc{path: p, fields: make(map[string]string)}
	}
	doc.fields[field] = addWireInt(doc.fields[field], delta)
	s.docs[p.Key()] = doc
	s.versions[p.Key()]++
}

type writeOp struct {
	op     int
	path   Path
	fields map[string]string
	field  string
	delta  int64
}

const (
	opSet = iota
	opUpdate
	opDelete
	opIncrement
)

type memTx struct {
	store  *MemoryStore
	reads  map[string]uint64
	writes []writeOp
}

func (t *memTx) Get(ctx context.Context, p Path) (Snapshot, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.reads[p.Key()] = t.store.versions[p.Key()]
	return t.store.snapshotLocked(p), nil
}

func (t *memTx) Set(p Path, fields map[string]string) {
	t.writes = append(t.writes, writeOp{op: opSet, path: p, fields: copyFields(fields)})
}

func (t *memTx) Update(p Path, fields map[string]string) {
	t.writes = append(t.writes, writeOp{op: opUpdate, path: p, fields: copyFields(fields)})
}

func (t *memTx) Increment(p Path, field string, delta int64) {
	t.writes = append(t.writes, writeOp{op: opIncrement, path: p, field: field, delta: delta})
}

func (t *memTx) Delete(p Path) {
	t.writes = append(t.writes, writeOp{op: opDelete, path: p})
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func addWireInt(s string, delta int64) string {
	return strconv.FormatInt(int64(wireInt(s))+delta, 10)
}
