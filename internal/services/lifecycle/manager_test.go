package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestShutdownReverseOrderAndJoinedErrors(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	errCache := errors.New("cache close failed")

	m.Register("store", func(context.Context) error { order = append(order, "store"); return nil })
	m.RegisterCloser("cache", func() error { order = append(order, "cache"); return errCache })
	m.Register("http", func(context.Context) error { order = append(order, "http"); return nil })
	m.Register("nil", nil)

	err := m.Shutdown(context.Background())
	if !errors.Is(err, errCache) {
		t.Fatalf("err = %v, want cache error", err)
	}
	if want := []string{"http", "cache", "store"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown = %v", err)
	}
	if len(order) != 3 {
		t.Fatal("hooks ran twice")
	}
}

func TestShutdownHonoursTimeout(t *testing.T) {
	m := New(10*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err := m.Shutdown(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestSignalContextCancel(t *testing.T) {
	m := New(0, nil)
	ctx, cancel := m.SignalContext(context.Background())
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}
