package buffer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "buffer.db"), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshotItem(key, payload string) Item {
	return Item{
		Entity:    EntitySnapshot,
		Key:       key,
		Operation: OperationPut,
		Data:      json.RawMessage(payload),
	}
}

func TestEnqueueCollapsesSameKey(t *testing.T) {
	s := openTestStore(t)

	if err := s.Enqueue(snapshotItem("tasks", `[1]`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Enqueue(snapshotItem("sprints", `[]`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Enqueue(snapshotItem("tasks", `[1,2]`)); err != nil {
		t.Fatal(err)
	}

	size, err := s.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size != 2 {
		t.Fatalf("Size() = %d, want 2", size)
	}

	item, ok, err := s.Pending(EntitySnapshot, "tasks")
	if err != nil || !ok {
		t.Fatalf("Pending: ok=%v err=%v", ok, err)
	}
	if string(item.Data) != `[1,2]` {
		t.Fatalf("pending data = %s, want latest write", item.Data)
	}
}

func TestBatchOrderAndRemove(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	low := snapshotItem("b", `"b"`)
	low.Priority = 5
	low.Timestamp = base
	urgent := snapshotItem("a", `"a"`)
	urgent.Priority = 1
	urgent.Timestamp = base.Add(time.Minute)

	for _, it := range []Item{low, urgent} {
		if err := s.Enqueue(it); err != nil {
			t.Fatal(err)
		}
	}

	batch, err := s.GetBatch(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0].Key != "a" || batch[1].Key != "b" {
		t.Fatalf("batch order = %+v", batch)
	}

	if err := s.Remove(batch[0]); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Pending(EntitySnapshot, "a"); ok {
		t.Fatal("removed item still pending")
	}
}

func TestRemoveKeepsNewerWrite(t *testing.T) {
	s := openTestStore(t)

	if err := s.Enqueue(snapshotItem("tasks", `"old"`)); err != nil {
		t.Fatal(err)
	}
	batch, _ := s.GetBatch(1)

	if err := s.Enqueue(snapshotItem("tasks", `"new"`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(batch[0]); err != nil {
		t.Fatal(err)
	}

	item, ok, err := s.Pending(EntitySnapshot, "tasks")
	if err != nil || !ok {
		t.Fatalf("newer write lost: ok=%v err=%v", ok, err)
	}
	if string(item.Data) != `"new"` {
		t.Fatalf("pending = %s", item.Data)
	}
	if err := s.Requeue(batch[0]); err != nil {
		t.Fatal(err)
	}
	item, _, _ = s.Pending(EntitySnapshot, "tasks")
	if string(item.Data) != `"new"` {
		t.Fatalf("stale requeue replaced newer write: %s", item.Data)
	}
}

func TestRequeueBumpsRetries(t *testing.T) {
	s := openTestStore(t)
	if err := s.Enqueue(snapshotItem("tasks", `[]`)); err != nil {
		t.Fatal(err)
	}
	batch, _ := s.GetBatch(1)
	if err := s.Requeue(batch[0]); err != nil {
		t.Fatal(err)
	}
	item, _, _ := s.Pending(EntitySnapshot, "tasks")
	if item.Retries != 1 {
		t.Fatalf("Retries = %d, want 1", item.Retries)
	}
	if size, _ := s.Size(); size != 1 {
		t.Fatalf("Size() = %d after requeue", size)
	}
}

func TestDropAndCleanup(t *testing.T) {
	s := openTestStore(t)

	old := snapshotItem("old", `1`)
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	if err := s.Enqueue(old); err != nil {
		t.Fatal(err)
	}
	if err := s.Enqueue(snapshotItem("fresh", `2`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Enqueue(Item{Entity: EntityProfile, Key: "user-1", Operation: OperationUpsert, Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Cleanup(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("Cleanup removed %d, want 1", removed)
	}
	if _, ok, _ := s.Pending(EntitySnapshot, "old"); ok {
		t.Fatal("expired item still indexed")
	}

	if err := s.Drop(EntityProfile, "user-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Drop(EntityProfile, "missing"); err != nil {
		t.Fatalf("Drop missing: %v", err)
	}
	if size, _ := s.Size(); size != 1 {
		t.Fatalf("Size() = %d, want 1", size)
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	if err := s.Enqueue(Item{}); err == nil {
		t.Fatal("Enqueue on nil store succeeded")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
