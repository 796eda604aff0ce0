package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/persist"
	"github.com/fastygo/taskify/repository/memory"
)

func newStores(t *testing.T) (*TaskStore, *SprintStore, *memory.SnapshotRepository) {
	t.Helper()
	repo := memory.NewSnapshotRepository()
	adapter := persist.NewAdapter(repo, "", nil, nil)
	clock := WithClock(func() time.Time { return fixedNow })

	tasks := NewTaskStore(adapter, clock)
	sprints := NewSprintStore(adapter, tasks, clock)
	ctx := context.Background()
	if err := tasks.Restore(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := sprints.Restore(ctx, nil, nil); err != nil {
		t.Fatal(err)
	}
	return tasks, sprints, repo
}

func TestProgressWithoutTasksIsZero(t *testing.T) {
	_, sprints, _ := newStores(t)
	sp, err := sprints.AddSprint(context.Background(), domain.Sprint{Name: "empty"})
	if err != nil {
		t.Fatal(err)
	}
	if got := sprints.Progress(sp.ID); got != 0 {
		t.Fatalf("Progress(empty) = %v, want 0", got)
	}
	if got := sprints.Progress("no-such-sprint"); got != 0 {
		t.Fatalf("Progress(unknown) = %v, want 0", got)
	}
}

func TestSprintProgressScenario(t *testing.T) {
	tasks, sprints, _ := newStores(t)
	ctx := context.Background()

	sp, err := sprints.AddSprint(ctx, domain.Sprint{
		Name:      "Sprint 1",
		StartDate: fixedNow.AddDate(0, 0, -20),
		EndDate:   fixedNow.AddDate(0, 0, -6),
	})
	if err != nil {
		t.Fatal(err)
	}

	a := mustAdd(t, tasks, domain.TaskInput{Title: "a", DueDate: fixedNow, SprintID: sp.ID})
	mustAdd(t, tasks, domain.TaskInput{Title: "b", DueDate: fixedNow, SprintID: sp.ID})
	mustAdd(t, tasks, domain.TaskInput{Title: "elsewhere", DueDate: fixedNow})

	a.Status = domain.StatusCompleted
	if _, err := tasks.UpdateTask(ctx, a); err != nil {
		t.Fatal(err)
	}
	if got := sprints.Progress(sp.ID); got != 0.5 {
		t.Fatalf("Progress = %v, want 0.5", got)
	}

	for _, task := range tasks.TasksBySprint(sp.ID) {
		task.Status = domain.StatusCompleted
		if _, err := tasks.UpdateTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	if got := sprints.Progress(sp.ID); got != 1.0 {
		t.Fatalf("Progress = %v, want 1.0", got)
	}
}

func TestDeleteSprintDoesNotCascade(t *testing.T) {
	tasks, sprints, _ := newStores(t)
	ctx := context.Background()

	sp, err := sprints.AddSprint(ctx, domain.Sprint{Name: "doomed"})
	if err != nil {
		t.Fatal(err)
	}
	task := mustAdd(t, tasks, domain.TaskInput{Title: "orphan", DueDate: fixedNow, SprintID: sp.ID})

	if ok, err := sprints.DeleteSprint(ctx, sp.ID); !ok || err != nil {
		t.Fatalf("DeleteSprint = %v, %v", ok, err)
	}
	if ok, err := sprints.DeleteSprint(ctx, sp.ID); ok || err != nil {
		t.Fatalf("second DeleteSprint = %v, %v", ok, err)
	}

	got, ok := tasks.Task(task.ID)
	if !ok || got.SprintID != sp.ID {
		t.Fatalf("task after sprint delete = %+v, %v", got, ok)
	}
}

func TestUpdateSprint(t *testing.T) {
	_, sprints, _ := newStores(t)
	ctx := context.Background()

	sp, err := sprints.AddSprint(ctx, domain.Sprint{Name: "draft"})
	if err != nil {
		t.Fatal(err)
	}
	sp.Goal = "ship it"
	if ok, err := sprints.UpdateSprint(ctx, sp); !ok || err != nil {
		t.Fatalf("UpdateSprint = %v, %v", ok, err)
	}
	got, _ := sprints.Sprint(sp.ID)
	if got.Goal != "ship it" {
		t.Fatalf("goal = %q", got.Goal)
	}

	ok, err := sprints.UpdateSprint(ctx, domain.Sprint{ID: "missing", Name: "x"})
	if ok || err != nil {
		t.Fatalf("UpdateSprint(missing) = %v, %v", ok, err)
	}
	if len(sprints.Sprints()) != 1 {
		t.Fatalf("update of unknown id inserted a sprint")
	}
}

func TestAddSprintKeepsCallerIDUnlessTaken(t *testing.T) {
	_, sprints, _ := newStores(t)
	ctx := context.Background()

	first, err := sprints.AddSprint(ctx, domain.Sprint{ID: "s1", Name: "one"})
	if err != nil || first.ID != "s1" {
		t.Fatalf("AddSprint = %+v, %v", first, err)
	}
	second, err := sprints.AddSprint(ctx, domain.Sprint{ID: "s1", Name: "two"})
	if err != nil || second.ID == "s1" {
		t.Fatalf("duplicate id accepted: %+v, %v", second, err)
	}
	if _, err := sprints.AddSprint(ctx, domain.Sprint{}); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("nameless sprint: got %v", err)
	}
}

func TestRetrospectivesAreAppendOnly(t *testing.T) {
	_, sprints, repo := newStores(t)
	ctx := context.Background()

	if _, err := sprints.AddRetrospective(ctx, domain.RetrospectiveInput{}); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("retro without sprint: got %v", err)
	}

	r1, err := sprints.AddRetrospective(ctx, domain.RetrospectiveInput{SprintID: "1", WentWell: "pairing", ToImprove: "estimates"})
	if err != nil {
		t.Fatal(err)
	}
	if !r1.CreatedAt.Equal(fixedNow) {
		t.Fatalf("CreatedAt = %v, want %v", r1.CreatedAt, fixedNow)
	}
	r2, err := sprints.AddRetrospective(ctx, domain.RetrospectiveInput{SprintID: "2"})
	if err != nil {
		t.Fatal(err)
	}
	if r1.ID == r2.ID {
		t.Fatal("retrospective ids collided")
	}

	all := sprints.Retrospectives()
	if len(all) != 2 || all[0].ID != r1.ID || all[1].ID != r2.ID {
		t.Fatalf("Retrospectives() = %+v", all)
	}
	if got := sprints.RetrospectivesBySprint("1"); len(got) != 1 || got[0].ID != r1.ID {
		t.Fatalf("RetrospectivesBySprint = %+v", got)
	}

	reloaded := NewSprintStore(persist.NewAdapter(repo, "", nil, nil), nil)
	if err := reloaded.Restore(ctx, nil, nil); err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Retrospectives()) != 2 {
		t.Fatalf("reloaded %d retrospectives", len(reloaded.Retrospectives()))
	}
}

func TestCompletedSprints(t *testing.T) {
	repo := memory.NewSnapshotRepository()
	sprints := NewSprintStore(persist.NewAdapter(repo, "", nil, nil), nil, WithClock(func() time.Time { return fixedNow }))
	if err := sprints.Restore(context.Background(), DemoSprints(fixedNow), DemoRetrospectives(fixedNow)); err != nil {
		t.Fatal(err)
	}

	done := sprints.CompletedSprints()
	if len(done) != 1 || done[0].ID != "1" {
		t.Fatalf("CompletedSprints = %+v", done)
	}
	if days := done[0].DurationDays(); days != 14 {
		t.Fatalf("DurationDays = %d, want 14", days)
	}
}

func TestSprintReturnsCopies(t *testing.T) {
	_, sprints, _ := newStores(t)
	sp, err := sprints.AddSprint(context.Background(), domain.Sprint{Name: "x", Tasks: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := sprints.Sprint(sp.ID)
	got.Tasks[0] = "mutated"
	again, _ := sprints.Sprint(sp.ID)
	if again.Tasks[0] != "a" {
		t.Fatal("Sprint() leaked internal slice")
	}
}

func TestSprintPersistFailureReported(t *testing.T) {
	_, sprints, repo := newStores(t)
	repo.SetError(errors.New("offline"))

	sp, err := sprints.AddSprint(context.Background(), domain.Sprint{Name: "kept"})
	if !errors.Is(err, persist.ErrPersistFailed) {
		t.Fatalf("AddSprint err = %v", err)
	}
	if _, ok := sprints.Sprint(sp.ID); !ok {
		t.Fatal("sprint dropped after persistence failure")
	}
}

func TestSprintSubscribers(t *testing.T) {
	_, sprints, _ := newStores(t)
	var last SprintChange
	calls := 0
	defer sprints.Subscribe(func(c SprintChange) {
		calls++
		last = c
	})()

	if _, err := sprints.AddSprint(context.Background(), domain.Sprint{Name: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := sprints.AddRetrospective(context.Background(), domain.RetrospectiveInput{SprintID: "a"}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 || len(last.Sprints) != 1 || len(last.Retrospectives) != 1 {
		t.Fatalf("calls=%d last=%+v", calls, last)
	}
}

func TestSprintSubscriberMayReadDuringConcurrentWrites(t *testing.T) {
	_, sprints, _ := newStores(t)
	defer sprints.Subscribe(func(SprintChange) {
		_ = sprints.Sprints()
		_ = sprints.Retrospectives()
	})()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 10; i++ {
					sp, _ := sprints.AddSprint(context.Background(), domain.Sprint{Name: fmt.Sprintf("s%d-%d", g, i)})
					_, _ = sprints.AddRetrospective(context.Background(), domain.RetrospectiveInput{SprintID: sp.ID})
				}
			}(g)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent sprint writes with a reading subscriber did not finish")
	}
	if got := len(sprints.Sprints()); got != 40 {
		t.Fatalf("len(Sprints()) = %d, want 40", got)
	}
}

func TestDemoSprintTaskListsRoundTrip(t *testing.T) {
	repo := memory.NewSnapshotRepository()
	ctx := context.Background()
	seeded := NewSprintStore(persist.NewAdapter(repo, "", nil, nil), nil)
	if err := seeded.Restore(ctx, DemoSprints(fixedNow), nil); err != nil {
		t.Fatal(err)
	}

	reloaded := NewSprintStore(persist.NewAdapter(repo, "", nil, nil), nil)
	if err := reloaded.Restore(ctx, nil, nil); err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{"1": {"1", "2"}, "2": {"3", "4"}}
	for id, tasks := range want {
		sp, ok := reloaded.Sprint(id)
		if !ok {
			t.Fatalf("sprint %s missing after reload", id)
		}
		if !slices.Equal(sp.Tasks, tasks) {
			t.Fatalf("sprint %s tasks = %v, want %v", id, sp.Tasks, tasks)
		}
	}
}
