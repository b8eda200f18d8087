package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/booking-redis/internal/domain"
)

func mustUserDoc(t *testing.T, id string) Path {
	t.Helper()
	p, err := UserDoc(id)
	if err != nil {
		t.Fatalf("UserDoc(%s): %v", id, err)
	}
	return p
}

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := mustUserDoc(t, "u1")

	snap, err := store.Get(ctx, p)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Exists {
		t.Fatal("absent document reports Exists")
	}

	if err := store.Set(ctx, p, map[string]string{"displayname": "Alice"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	snap, err = store.Get(ctx, p)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !snap.Exists || snap.Fields["displayname"] != "Alice" {
		t.Errorf("snapshot = %+v, want Alice", snap)
	}

	// Setting zero fields deletes the document.
	if err := store.Set(ctx, p, nil); err != nil {
		t.Fatalf("Set(nil): %v", err)
	}
	snap, _ = store.Get(ctx, p)
	if snap.Exists {
		t.Error("document survived an empty Set")
	}
}

func TestMemoryStoreUpdateRequiresDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := mustUserDoc(t, "u1")

	err := store.Update(ctx, p, map[string]string{"displayname": "Alice"})
	if !domain.IsNotFound(err) {
		t.Fatalf("Update on absent doc = %v, want not-found", err)
	}

	if err := store.Set(ctx, p, map[string]string{"displayname": "Alice", "icon": "x"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Update(ctx, p, map[string]string{"displayname": "Bob"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	snap, _ := store.Get(ctx, p)
	if snap.Fields["displayname"] != "Bob" || snap.Fields["icon"] != "x" {
		t.Errorf("update did not merge: %+v", snap.Fields)
	}
}

func TestMemoryStoreIncrement(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := mustUserDoc(t, "u1")

	if err := store.Set(ctx, p, map[string]string{"win": "2"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Increment(ctx, p, "win", 1); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := store.Increment(ctx, p, "lose", 1); err != nil {
		t.Fatalf("Increment new field: %v", err)
	}
	snap, _ := store.Get(ctx, p)
	if snap.Fields["win"] != "3" || snap.Fields["lose"] != "1" {
		t.Errorf("counters = %+v, want win 3 lose 1", snap.Fields)
	}
}

func TestMemoryStoreServerTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return fixed })

	p, err := EventDoc("e1")
	if err != nil {
		t.Fatalf("EventDoc: %v", err)
	}
	if err := store.Set(ctx, p, map[string]string{"createddate": ServerTimestamp}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	snap, _ := store.Get(ctx, p)
	if got := snap.Fields["createddate"]; got != FormatTime(fixed) {
		t.Errorf("createddate = %q, want %q", got, FormatTime(fixed))
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for id, fields := range map[string]map[string]string{
		"e1": {"name": "a", "begindate": "2026-05-01", "challenger": ""},
		"e2": {"name": "b", "begindate": "2026-05-02", "challenger": "user:c"},
		"e3": {"name": "c", "begindate": "2026-05-01", "challenger": "user:c"},
	} {
		p, err := EventDoc(id)
		if err != nil {
			t.Fatalf("EventDoc(%s): %v", id, err)
		}
		if err := store.Set(ctx, p, fields); err != nil {
			t.Fatalf("Set(%s): %v", id, err)
		}
	}

	snaps, err := store.Query(ctx, EventCollection(), EventBeginDateEquals("2026-05-01"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Path.ID() != "e1" || snaps[1].Path.ID() != "e3" {
		t.Errorf("query = %v, want [e1 e3]", snaps)
	}

	snaps, err = store.Query(ctx, EventCollection(), EventBeginDateEquals("2026-05-01"), EventIsOpen())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Path.ID() != "e1" {
		t.Errorf("query = %v, want [e1]", snaps)
	}
}

func TestMemoryStoreTransactionRetries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := mustUserDoc(t, "u1")
	if err := store.Set(ctx, p, map[string]string{"win": "0"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// The first attempt reads the document and then loses the race; the
	// runner must retry and the second attempt must win.
	attempts := 0
	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		attempts++
		if _, err := tx.Get(ctx, p); err != nil {
			return err
		}
		if attempts == 1 {
			if err := store.Set(ctx, p, map[string]string{"win": "9"}); err != nil {
				return err
			}
		}
		tx.Set(p, map[string]string{"win": "1"})
		return nil
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	snap, _ := store.Get(ctx, p)
	if snap.Fields["win"] != "1" {
		t.Errorf("win = %q, want 1", snap.Fields["win"])
	}
}

func TestMemoryStoreTransactionBudget(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := mustUserDoc(t, "u1")
	if err := store.Set(ctx, p, map[string]string{"win": "0"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Get(ctx, p); err != nil {
			return err
		}
		// Every attempt loses the race.
		if err := store.Increment(ctx, p, "win", 1); err != nil {
			return err
		}
		tx.Set(p, map[string]string{"win": "-1"})
		return nil
	})
	if !domain.IsPersistence(err) {
		t.Fatalf("exhausted budget = %v, want persistence error", err)
	}
}

func TestMemoryStoreTransactionIncrement(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := mustUserDoc(t, "u1")
	if err := store.Set(ctx, p, map[string]string{"displayname": "Alice", "win": "1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Get(ctx, p); err != nil {
			return err
		}
		tx.Increment(p, "win", 1)
		return nil
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	snap, _ := store.Get(ctx, p)
	if snap.Fields["win"] != "2" || snap.Fields["displayname"] != "Alice" {
		t.Errorf("fields = %+v, want win 2 with profile intact", snap.Fields)
	}
}

func TestMemoryStoreTransactionIncrementVsDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := mustUserDoc(t, "u1")
	if err := store.Set(ctx, p, map[string]string{"win": "1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// The document is deleted between the transaction's read and its
	// commit; the retry must observe the deletion and bail out instead of
	// recreating the document as a bare counter.
	attempts := 0
	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		attempts++
		snap, err := tx.Get(ctx, p)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return &domain.NotFoundError{Kind: "user"}
		}
		if attempts == 1 {
			if err := store.Delete(ctx, p); err != nil {
				return err
			}
		}
		tx.Increment(p, "win", 1)
		return nil
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}
	snap, _ := store.Get(ctx, p)
	if snap.Exists {
		t.Errorf("deleted document came back: %+v", snap.Fields)
	}
}

func TestMemoryStoreTransactionAbort(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := mustUserDoc(t, "u1")

	wantErr := &domain.ConflictError{Reason: domain.ReasonDoubleBooking}
	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		tx.Set(p, map[string]string{"win": "1"})
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("aborted transaction = %v, want the abort error unchanged", err)
	}
	snap, _ := store.Get(ctx, p)
	if snap.Exists {
		t.Error("aborted transaction applied its writes")
	}
}
