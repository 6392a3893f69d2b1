package ringbuf

import (
	"sync"
	"testing"
	"time"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

func tick(instrument string, ts int64) model.Tick {
	return model.Tick{Instrument: instrument, Time: ts}
}

func TestRing_FIFO(t *testing.T) {
	r := New(4)

	if !r.Push(tick("SBER", 1)) || !r.Push(tick("SBER", 2)) {
		t.Fatal("pushes into empty ring must succeed")
	}
	if r.Len() != 2 {
		t.Fatalf("len=%d, want 2", r.Len())
	}

	got, ok := r.Pop()
	if !ok || got.Time != 1 {
		t.Fatalf("first pop = %v ok=%v, want ts=1", got.Time, ok)
	}
	got, ok = r.Pop()
	if !ok || got.Time != 2 {
		t.Fatalf("second pop = %v ok=%v, want ts=2", got.Time, ok)
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("pop from empty ring must report false")
	}
}

func TestRing_FullDrops(t *testing.T) {
	r := New(2)

	r.Push(tick("A", 1))
	r.Push(tick("A", 2))
	if r.Push(tick("A", 3)) {
		t.Fatal("push into full ring must fail")
	}
	if r.Dropped() != 1 {
		t.Fatalf("dropped=%d, want 1", r.Dropped())
	}

	// The queued ticks are untouched by the failed push.
	got, _ := r.Pop()
	if got.Time != 1 {
		t.Fatalf("head tick ts=%d, want 1", got.Time)
	}
}

func TestRing_CapacityRounding(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 2}, {1, 2}, {2, 2}, {3, 4}, {5, 8}, {1000, 1024},
	}
	for _, tc := range cases {
		if got := New(tc.in).Cap(); got != tc.want {
			t.Errorf("New(%d).Cap()=%d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestRing_WrapAround(t *testing.T) {
	r := New(4)
	// Cycle many times past the capacity to exercise index wrapping.
	for i := int64(0); i < 100; i++ {
		if !r.Push(tick("A", i)) {
			t.Fatalf("push %d failed on non-full ring", i)
		}
		got, ok := r.Pop()
		if !ok || got.Time != i {
			t.Fatalf("pop %d = %v ok=%v", i, got.Time, ok)
		}
	}
}

func TestRing_SPSC(t *testing.T) {
	const n = 10000
	r := New(64)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := int64(0); i < n; i++ {
			for !r.Push(tick("A", i)) {
				time.Sleep(time.Microsecond)
			}
		}
	}()

	var got []int64
	go func() {
		defer wg.Done()
		for len(got) < n {
			if tk, ok := r.Pop(); ok {
				got = append(got, tk.Time)
			} else {
				time.Sleep(time.Microsecond)
			}
		}
	}()

	wg.Wait()

	for i := int64(0); i < n; i++ {
		if got[i] != i {
			t.Fatalf("out of order at %d: got %d", i, got[i])
		}
	}
	if r.Dropped() != 0 {
		t.Errorf("dropped=%d with retrying producer, want 0", r.Dropped())
	}
}
