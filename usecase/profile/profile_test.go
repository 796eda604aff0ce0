package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/fastygo/taskify/domain"
)

type fakeProfiles struct {
	rows map[string]domain.Profile
	err  error
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeProfiles) Update(ctx context.Context, p *domain.Profile) error { return f.Upsert(ctx, p) }

func (f *fakeProfiles) Upsert(_ context.Context, p *domain.Profile) error {
	if f.err != nil {
		return f.err
	}
	f.rows[p.ID] = *p
	return nil
}

type fakeBuffer struct {
	profiles []domain.Profile
	err      error
}

func (f *fakeBuffer) BufferProfile(_ context.Context, p *domain.Profile) error {
	if f.err != nil {
		return f.err
	}
	f.profiles = append(f.profiles, *p)
	return nil
}

func (f *fakeBuffer) BufferSnapshot(context.Context, string, []byte) error { return nil }

func ptr(s string) *string { return &s }

func TestUpdateProfileCreatesAndPatches(t *testing.T) {
	repo := &fakeProfiles{rows: map[string]domain.Profile{}}
	uc := New(repo, nil, nil)
	ctx := context.Background()

	p, err := uc.UpdateProfile(ctx, "u1", Patch{Username: ptr("  ada "), Bio: ptr("math")})
	if err != nil {
		t.Fatal(err)
	}
	if p.Username != "ada" || p.CreatedAt.IsZero() {
		t.Fatalf("profile = %+v", p)
	}

	p, err = uc.UpdateProfile(ctx, "u1", Patch{FirstName: ptr("Ada")})
	if err != nil {
		t.Fatal(err)
	}
	if p.Username != "ada" || p.Bio != "math" || p.FirstName != "Ada" {
		t.Fatalf("patch clobbered fields: %+v", p)
	}
	if p.DisplayName() != "Ada" {
		t.Fatalf("DisplayName() = %q", p.DisplayName())
	}
}

func TestUpdateProfileBuffersOnFailure(t *testing.T) {
	repo := &fakeProfiles{rows: map[string]domain.Profile{}, err: errors.New("db down")}
	buf := &fakeBuffer{}
	uc := New(repo, buf, nil)

	p, err := uc.UpdateProfile(context.Background(), "u1", Patch{Username: ptr("ada")})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if len(buf.profiles) != 1 || buf.profiles[0].Username != p.Username {
		t.Fatalf("buffered = %+v", buf.profiles)
	}

	buf.err = errors.New("disk full")
	if _, err := uc.UpdateProfile(context.Background(), "u1", Patch{}); err == nil {
		t.Fatal("expected repository error when buffering fails too")
	}
}
