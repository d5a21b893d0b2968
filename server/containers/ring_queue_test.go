package containers

import (
	"fmt"
	"testing"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[string](4)
	for _, v := range []string{"a", "b", "c"} {
		if err := rq.Enqueue(v); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		got, err := rq.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("Dequeue = %q; want %q", got, want)
		}
	}
	if _, err := rq.Dequeue(); err != ErrQueueEmpty {
		t.Fatalf("err = %v; want ErrQueueEmpty", err)
	}
}

func TestRingQueueBound(t *testing.T) {
	rq := NewRingQueue[string](128)
	for i := 0; i < 129; i++ {
		err := rq.Enqueue(fmt.Sprintf("/meshes/m%03d.stl", i))
		if i < 128 && err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		if i == 128 && err != ErrQueueFull {
			t.Fatalf("enqueue 129th: err = %v; want ErrQueueFull", err)
		}
	}
	if rq.Len() != 128 {
		t.Fatalf("Len = %d; want 128", rq.Len())
	}
	// Drain order matches the first 128 insertions.
	for i := 0; i < 128; i++ {
		got, err := rq.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		if want := fmt.Sprintf("/meshes/m%03d.stl", i); got != want {
			t.Fatalf("Dequeue %d = %q; want %q", i, got, want)
		}
	}
}

func TestRingQueueWrapAround(t *testing.T) {
	rq := NewRingQueue[int](3)
	for i := 0; i < 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := rq.Dequeue(); err != nil {
		t.Fatal(err)
	}
	if err := rq.Enqueue(3); err != nil {
		t.Fatal(err)
	}
	for _, want := range []int{1, 2, 3} {
		got, err := rq.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("Dequeue = %d; want %d", got, want)
		}
	}
}
