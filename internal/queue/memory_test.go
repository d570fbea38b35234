package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/eldtechnologies/parley/internal/models"
)

func msg(seq uint64, body string) models.Message {
	return models.Message{ID: body, Seq: seq, Sender: "alice", Recipient: "bob", Body: body, Timestamp: 100}
}

func TestAppendDrainOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i, body := range []string{"first", "second", "third"} {
		if err := s.Append(ctx, "bob", msg(uint64(i+1), body)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	msgs, err := s.Drain(ctx, "bob")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("drained %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Body != want {
			t.Errorf("msgs[%d].Body = %q, want %q", i, msgs[i].Body, want)
		}
	}
}

func TestDrainEmptiesQueue(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Append(ctx, "bob", msg(1, "hi")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Drain(ctx, "bob"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	msgs, err := s.Drain(ctx, "bob")
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("second drain returned %d messages, want 0", len(msgs))
	}
}

func TestDrainUnknownAccount(t *testing.T) {
	s := NewMemoryStore()

	msgs, err := s.Drain(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("drained %d messages for unknown account, want 0", len(msgs))
	}
}

func TestPendingCountsAcrossAccounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Append(ctx, "bob", msg(1, "a"))
	s.Append(ctx, "bob", msg(2, "b"))
	s.Append(ctx, "carol", msg(3, "c"))

	n, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if n != 3 {
		t.Fatalf("Pending() = %d, want 3", n)
	}

	s.Drain(ctx, "bob")
	n, _ = s.Pending(ctx)
	if n != 1 {
		t.Fatalf("Pending() after drain = %d, want 1", n)
	}
}

func TestConcurrentAppendDrainLosesNothing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const total = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			s.Append(ctx, "bob", msg(uint64(i+1), "x"))
		}
	}()

	var drained int
	for i := 0; i < 50; i++ {
		msgs, err := s.Drain(ctx, "bob")
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}
		drained += len(msgs)
	}
	wg.Wait()

	msgs, _ := s.Drain(ctx, "bob")
	drained += len(msgs)

	if drained != total {
		t.Fatalf("drained %d messages, want %d", drained, total)
	}
}
