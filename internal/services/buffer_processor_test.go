package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/infrastructure/buffer"
	"github.com/fastygo/taskify/repository/memory"
)

type fakeHealth struct{ online bool }

func (f *fakeHealth) IsOnline() bool { return f.online }

type fakeProfiles struct {
	mu       sync.Mutex
	upserted []domain.Profile
	err      error
	onFail   func()
}

func (f *fakeProfiles) GetByID(context.Context, string) (*domain.Profile, error) {
	return nil, domain.ErrProfileNotFound
}

func (f *fakeProfiles) Update(ctx context.Context, p *domain.Profile) error {
	return f.Upsert(ctx, p)
}

func (f *fakeProfiles) Upsert(_ context.Context, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		if f.onFail != nil {
			f.onFail()
		}
		return f.err
	}
	f.upserted = append(f.upserted, *p)
	return nil
}

type fixture struct {
	store     *buffer.Store
	health    *fakeHealth
	profiles  *fakeProfiles
	snapshots *memory.SnapshotRepository
	proc      *BufferProcessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:     store,
		health:    &fakeHealth{online: true},
		profiles:  &fakeProfiles{},
		snapshots: memory.NewSnapshotRepository(),
	}
	f.proc = NewBufferProcessor(store, f.health, f.profiles, f.snapshots, nil, ProcessorConfig{MaxRetries: 2})
	return f
}

func (f *fixture) size(t *testing.T) int {
	t.Helper()
	n, err := f.proc.Size()
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSnapshotBufferWritesThroughWhenOnline(t *testing.T) {
	f := newFixture(t)
	sb := NewSnapshotBuffer(f.snapshots, f.proc)
	ctx := context.Background()

	if err := sb.Put(ctx, "ns/tasks", []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatal(err)
	}
	if raw, ok := f.snapshots.Raw("ns/tasks"); !ok || string(raw) != `[{"id":"1"}]` {
		t.Fatalf("primary = %s, %v", raw, ok)
	}
	if f.size(t) != 0 {
		t.Fatal("write-through left a buffered item")
	}
}

func TestSnapshotBufferParksWritesDuringOutage(t *testing.T) {
	f := newFixture(t)
	sb := NewSnapshotBuffer(f.snapshots, f.proc)
	ctx := context.Background()

	f.snapshots.SetError(errors.New("connection refused"))
	if err := sb.Put(ctx, "ns/tasks", []byte(`["a"]`)); err != nil {
		t.Fatalf("Put during outage: %v", err)
	}
	if err := sb.Put(ctx, "ns/tasks", []byte(`["a","b"]`)); err != nil {
		t.Fatal(err)
	}
	if f.size(t) != 1 {
		t.Fatalf("buffered items = %d, want 1 per key", f.size(t))
	}

	got, err := sb.Get(ctx, "ns/tasks")
	if err != nil || string(got) != `["a","b"]` {
		t.Fatalf("Get during outage = %s, %v", got, err)
	}

	f.snapshots.SetError(nil)
	if err := f.proc.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if raw, _ := f.snapshots.Raw("ns/tasks"); string(raw) != `["a","b"]` {
		t.Fatalf("replayed payload = %s", raw)
	}
	if f.size(t) != 0 {
		t.Fatal("drain left items behind")
	}
}

func TestDirectWriteSupersedesPending(t *testing.T) {
	f := newFixture(t)
	sb := NewSnapshotBuffer(f.snapshots, f.proc)
	ctx := context.Background()

	f.snapshots.SetError(errors.New("down"))
	_ = sb.Put(ctx, "k", []byte(`"stale"`))

	f.snapshots.SetError(nil)
	if err := sb.Put(ctx, "k", []byte(`"fresh"`)); err != nil {
		t.Fatal(err)
	}
	if err := f.proc.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if raw, _ := f.snapshots.Raw("k"); string(raw) != `"fresh"` {
		t.Fatalf("stale replay overwrote newer write: %s", raw)
	}
}

func TestDrainSkippedOffline(t *testing.T) {
	f := newFixture(t)
	f.health.online = false
	ctx := context.Background()

	if err := NewBufferBridge(f.proc).BufferSnapshot(ctx, "k", []byte(`1`)); err != nil {
		t.Fatal(err)
	}
	if f.snapshots.Writes() != 0 {
		t.Fatal("offline write reached primary")
	}
	if err := f.proc.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if f.size(t) != 1 {
		t.Fatal("offline drain consumed items")
	}
}

func TestDrainDropsAfterMaxRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.profiles.err = errors.New("constraint violation")

	bridge := NewBufferBridge(f.proc)
	if err := bridge.BufferProfile(ctx, &domain.Profile{ID: "u1", Username: "sam"}); err != nil {
		t.Fatal(err)
	}

	_ = f.proc.Drain(ctx)
	if f.size(t) != 1 {
		t.Fatal("item dropped before max retries")
	}
	_ = f.proc.Drain(ctx)
	if f.size(t) != 0 {
		t.Fatal("item kept after max retries")
	}
}

func TestDrainLogsFailedPurgeOfDroppedItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	proc := NewBufferProcessor(f.store, f.health, f.profiles, f.snapshots, zap.New(core), ProcessorConfig{MaxRetries: 1})

	f.health.online = false
	if err := NewBufferBridge(proc).BufferProfile(ctx, &domain.Profile{ID: "u1"}); err != nil {
		t.Fatal(err)
	}
	f.profiles.err = errors.New("constraint violation")
	f.profiles.onFail = func() { f.store.Close() }
	f.health.online = true

	if err := proc.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	purge := logs.FilterMessage("failed to purge dropped buffer item")
	if purge.Len() != 1 {
		t.Fatalf("purge failure logged %d times, want 1 (logs: %v)", purge.Len(), logs.All())
	}
	if _, ok := purge.All()[0].ContextMap()["error"]; !ok {
		t.Fatal("purge failure logged without the error")
	}
}

func TestProfileReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.profiles.err = errors.New("down")

	if err := NewBufferBridge(f.proc).BufferProfile(ctx, &domain.Profile{ID: "u1", FirstName: "Ada"}); err != nil {
		t.Fatal(err)
	}
	f.profiles.err = nil
	if err := f.proc.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if len(f.profiles.upserted) != 1 || f.profiles.upserted[0].FirstName != "Ada" {
		t.Fatalf("upserted = %+v", f.profiles.upserted)
	}
}

func TestBridgeRejectsEmptyInput(t *testing.T) {
	f := newFixture(t)
	b := NewBufferBridge(f.proc)
	if err := b.BufferProfile(context.Background(), nil); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("err = %v", err)
	}
	if err := b.BufferSnapshot(context.Background(), "", nil); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("err = %v", err)
	}
}
