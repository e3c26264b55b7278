package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	queue, err := NewRedisQueue(context.Background(), "redis://"+mr.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	t.Cleanup(func() { queue.Close() })
	return queue, mr
}

func TestNewRedisQueue_InvalidURL(t *testing.T) {
	if _, err := NewRedisQueue(context.Background(), "invalid://url", 0); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestSubmitStoresPendingRecord(t *testing.T) {
	queue, mr := setupTestRedis(t)
	ctx := context.Background()

	id, err := queue.Submit(ctx, []byte(`{"op":"orthology_query"}`), Options{Queue: "long", NoNotify: true})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := queue.Status(ctx, id); got != Pending {
		t.Errorf("Status() = %s, want PENDING", got)
	}
	if got := mr.HGet(queue.jobKey(id), "notify"); got != "0" {
		t.Errorf("notify = %q, want 0", got)
	}
	list, err := mr.List(queue.queueKey("long"))
	if err != nil || len(list) != 1 || list[0] != id {
		t.Errorf("queue list = %v, %v", list, err)
	}
}

func TestStatusUnknown(t *testing.T) {
	queue, mr := setupTestRedis(t)
	ctx := context.Background()

	if got := queue.Status(ctx, "no-such-job"); got != Unknown {
		t.Errorf("Status() = %s, want UNKNOWN", got)
	}

	id, _ := queue.Submit(ctx, nil, Options{})
	mr.SetError("connection reset")
	if got := queue.Status(ctx, id); got != Unknown {
		t.Errorf("Status() on redis error = %s, want UNKNOWN", got)
	}
	mr.SetError("")
}

func TestDequeueLifecycle(t *testing.T) {
	queue, mr := setupTestRedis(t)
	ctx := context.Background()

	first, _ := queue.Submit(ctx, []byte("one"), Options{})
	second, _ := queue.Submit(ctx, []byte("two"), Options{})

	j, err := queue.Dequeue(ctx, DefaultQueue, time.Second)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if j == nil || j.ID != first || string(j.Payload) != "one" || !j.Notify {
		t.Fatalf("Dequeue() = %+v, want first job", j)
	}
	if got := queue.Status(ctx, first); got != Running {
		t.Errorf("Status() = %s, want RUNNING", got)
	}

	if err := queue.Finish(ctx, first, nil); err != nil {
		t.Fatal(err)
	}
	if got := queue.Status(ctx, first); got != Done {
		t.Errorf("Status() = %s, want DONE", got)
	}
	if ttl := mr.TTL(queue.jobKey(first)); ttl != time.Hour {
		t.Errorf("finished record TTL = %v, want 1h", ttl)
	}

	j, _ = queue.Dequeue(ctx, DefaultQueue, time.Second)
	if err := queue.Finish(ctx, j.ID, errors.New("backend exploded")); err != nil {
		t.Fatal(err)
	}
	if got := queue.Status(ctx, second); got != Exited {
		t.Errorf("Status() = %s, want EXITED", got)
	}
	if got := mr.HGet(queue.jobKey(second), "error"); got != "backend exploded" {
		t.Errorf("error field = %q", got)
	}
}

func TestDequeueEmpty(t *testing.T) {
	queue, _ := setupTestRedis(t)
	j, err := queue.Dequeue(context.Background(), "long", 100*time.Millisecond)
	if err != nil || j != nil {
		t.Errorf("Dequeue() on empty queue = %v, %v", j, err)
	}
}

func TestSuspendResume(t *testing.T) {
	queue, mr := setupTestRedis(t)
	ctx := context.Background()

	id, _ := queue.Submit(ctx, []byte("x"), Options{Queue: "long"})
	if err := queue.Suspend(ctx, id); err != nil {
		t.Fatalf("Suspend() error = %v", err)
	}
	if got := queue.Status(ctx, id); got != Suspended {
		t.Errorf("Status() = %s, want SUSPENDED", got)
	}
	if list, _ := mr.List(queue.queueKey("long")); len(list) != 0 {
		t.Errorf("suspended job still queued: %v", list)
	}
	if err := queue.Suspend(ctx, id); err == nil {
		t.Error("suspending a suspended job should fail")
	}

	if err := queue.Resume(ctx, id); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	j, err := queue.Dequeue(ctx, "long", time.Second)
	if err != nil || j == nil || j.ID != id {
		t.Errorf("Dequeue() after resume = %v, %v", j, err)
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"PENDING": Pending,
		"DONE":    Done,
		"EXITED":  Exited,
		"":        Unknown,
		"weird":   Unknown,
	}
	for in, want := range tests {
		if got := ParseStatus(in); got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", in, got, want)
		}
	}
	if !Suspended.Active() || Done.Active() || Unknown.Active() {
		t.Error("Active() mismatch")
	}
}
