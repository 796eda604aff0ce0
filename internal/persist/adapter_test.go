package persist

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository/memory"
)

func sampleTasks() []domain.Task {
	due := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return []domain.Task{
		{ID: "a", Title: "Design UI", DueDate: due, Priority: domain.PriorityHigh, Status: domain.StatusTodo, SprintID: "s1"},
		{ID: "b", Title: "Write docs", Description: "readme", DueDate: due.Add(48 * time.Hour), Priority: domain.PriorityLow, Status: domain.StatusCompleted},
	}
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	a := NewAdapter(memory.NewSnapshotRepository(), "user-1", nil, nil)

	records, found, err := Load[domain.Task](context.Background(), a, KeyTasks)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatalf("Load: found = true on empty repository")
	}
	if records != nil {
		t.Fatalf("Load: records = %v, want nil", records)
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSnapshotRepository()
	a := NewAdapter(repo, "user-1", nil, nil)

	want := sampleTasks()
	if err := Save(ctx, a, KeyTasks, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := repo.Raw("user-1/tasks"); !ok {
		t.Fatalf("Save did not write the namespaced key")
	}

	got, found, err := Load[domain.Task](ctx, a, KeyTasks)
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	// Saving what was loaded leaves the stored payload unchanged.
	before, _ := repo.Raw("user-1/tasks")
	if err := Save(ctx, a, KeyTasks, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	after, _ := repo.Raw("user-1/tasks")
	if string(before) != string(after) {
		t.Fatalf("save(load()) changed payload:\n%s\n%s", before, after)
	}
}

func TestSaveEmptyWritesArray(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSnapshotRepository()
	a := NewAdapter(repo, "", nil, nil)

	if err := Save[domain.Sprint](ctx, a, KeySprints, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := repo.Raw("sprints")
	if string(raw) != "[]" {
		t.Fatalf("payload = %s, want []", raw)
	}

	got, found, err := Load[domain.Sprint](ctx, a, KeySprints)
	if err != nil || !found || got == nil || len(got) != 0 {
		t.Fatalf("Load: got=%v found=%v err=%v", got, found, err)
	}
}

func TestSaveFailureIsReportedAndNotified(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSnapshotRepository()
	notifier := NewNotifier()
	failures, cancel := notifier.Subscribe(1)
	defer cancel()

	a := NewAdapter(repo, "", notifier, nil)
	boom := errors.New("quota exceeded")
	repo.SetError(boom)

	err := Save(ctx, a, KeyTasks, sampleTasks())
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("Save: got %v, want ErrPersistFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Save: cause not preserved: %v", err)
	}

	select {
	case f := <-failures:
		if f.Key != KeyTasks || !errors.Is(f.Err, boom) {
			t.Fatalf("failure = %+v", f)
		}
	default:
		t.Fatal("no failure notification delivered")
	}
	if notifier.Failures() != 1 {
		t.Fatalf("Failures() = %d, want 1", notifier.Failures())
	}
}

func TestLoadCorruptPayload(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSnapshotRepository()
	if err := repo.Put(ctx, "tasks", []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	a := NewAdapter(repo, "", nil, nil)

	if _, _, err := Load[domain.Task](ctx, a, KeyTasks); err == nil {
		t.Fatal("Load of corrupt payload succeeded")
	}
}

func TestNotifierDropsWhenFull(t *testing.T) {
	n := NewNotifier()
	_, cancel := n.Subscribe(1)
	defer cancel()

	n.Publish(Failure{Key: "a"})
	n.Publish(Failure{Key: "b"})

	if n.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", n.Dropped())
	}
}
