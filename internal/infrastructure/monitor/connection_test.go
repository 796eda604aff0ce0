package monitor

import (
	"context"
	"errors"
	"testing"
)

type fakeSizer struct {
	n   int
	err error
}

func (f fakeSizer) Size() (int, error) { return f.n, f.err }

func TestIsOnlineFollowsRequiredProbes(t *testing.T) {
	var dbErr error
	m := New(0, fakeSizer{n: 4}, nil,
		Probe{Name: "db", Required: true, Check: func(context.Context) error { return dbErr }},
		Probe{Name: "cache", Check: func(context.Context) error { return errors.New("down") }},
	)

	if m.IsOnline() {
		t.Fatal("monitor online before first check")
	}

	m.Refresh(context.Background())
	if !m.IsOnline() {
		t.Fatal("optional probe failure should not take the monitor offline")
	}
	st := m.GetStatus()
	if !st.Up("db") || st.Up("cache") || !st.Up("buffer") || st.BufferSize != 4 {
		t.Fatalf("status = %+v", st)
	}

	dbErr = errors.New("connection refused")
	m.Refresh(context.Background())
	if m.IsOnline() {
		t.Fatal("required probe failed but monitor online")
	}
}

func TestGetStatusReturnsCopy(t *testing.T) {
	m := New(0, nil, nil, Probe{Name: "db", Required: true, Check: func(context.Context) error { return nil }})
	m.Refresh(context.Background())

	st := m.GetStatus()
	st.Components["db"] = false
	if !m.GetStatus().Up("db") {
		t.Fatal("caller mutated monitor state")
	}
}

func TestStopIdempotent(t *testing.T) {
	m := New(0, nil, nil)
	m.Start()
	m.Stop()
	m.Stop()
}
