package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Put(i)
	}
	for i := 0; i < 5; i++ {
		got, err := q.Get(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != i {
			t.Fatalf("expected %d, got %d", i, got)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestQueueGetBlocksUntilPut(t *testing.T) {
	q := NewQueue[string]()
	done := make(chan string, 1)
	go func() {
		item, err := q.Get(context.Background())
		if err != nil {
			done <- "error: " + err.Error()
			return
		}
		done <- item
	}()

	time.Sleep(10 * time.Millisecond)
	q.Put("hello")

	select {
	case got := <-done:
		if got != "hello" {
			t.Fatalf("unexpected item %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not wake after Put")
	}
}

func TestQueueGetInterruptedByContext(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Get(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not return after cancel")
	}
}

func TestQueueTryGetAndDrain(t *testing.T) {
	q := NewQueue[int]()
	if _, ok := q.TryGet(); ok {
		t.Fatal("TryGet on empty queue must report false")
	}
	q.Put(1)
	q.Put(2)
	q.Put(3)
	if got, ok := q.TryGet(); !ok || got != 1 {
		t.Fatalf("unexpected TryGet result %d %v", got, ok)
	}
	if n := q.Drain(); n != 2 {
		t.Fatalf("expected 2 drained, got %d", n)
	}
	if q.Len() != 0 {
		t.Fatal("expected empty queue after drain")
	}
}
