package workers

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := NewQueue("test")

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		if !q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}) {
			t.Fatalf("Submit(%d) rejected", i)
		}
	}
	q.Close()

	if len(got) != 100 {
		t.Fatalf("ran %d tasks, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestQueueIsSerial(t *testing.T) {
	q := NewQueue("serial")

	var running, maxRunning int32
	for i := 0; i < 20; i++ {
		q.Submit(func() {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxRunning)
				if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	q.Close()

	if maxRunning != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", maxRunning)
	}
}

func TestQueueSubmitDoesNotBlock(t *testing.T) {
	q := NewQueue("slow")
	release := make(chan struct{})
	q.Submit(func() { <-release })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			q.Submit(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked behind a running task")
	}

	close(release)
	q.Close()
	if n := q.Len(); n != 0 {
		t.Errorf("Len() after Close = %d, want 0", n)
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue("closing")
	if q.Name() != "closing" {
		t.Errorf("Name() = %q", q.Name())
	}
	q.Close()
	q.Close()

	if q.Submit(func() { t.Error("task ran after Close") }) {
		t.Error("Submit after Close should return false")
	}
}
