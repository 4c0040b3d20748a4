package buffer

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestRingOverwrite(t *testing.T) {
	t.Run("size=1", func(t *testing.T) {
		r := NewRing[byte](1)
		r.Write([]byte{1, 2, 3})
		r.CloseWrite()

		if r.Len() != 1 {
			t.Errorf("len=%d", r.Len())
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Errorf("read with error: %v", err)
		}
		if !bytes.Equal(got, []byte{3}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("size=2", func(t *testing.T) {
		r := NewRing[byte](2)
		r.Write([]byte{1, 2, 3})
		r.CloseWrite()

		got, err := io.ReadAll(r)
		if err != nil {
			t.Errorf("read with error: %v", err)
		}
		if !bytes.Equal(got, []byte{2, 3}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("size=4", func(t *testing.T) {
		r := NewRing[byte](4)
		r.Write([]byte{1, 2, 3})
		r.CloseWrite()

		got, err := io.ReadAll(r)
		if err != nil {
			t.Errorf("read with error: %v", err)
		}
		if !bytes.Equal(got, []byte{1, 2, 3}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("sequential writes wrap", func(t *testing.T) {
		r := NewRing[byte](3)
		r.Write([]byte{1, 2})
		r.Write([]byte{3, 4})
		r.CloseWrite()

		got, err := io.ReadAll(r)
		if err != nil {
			t.Errorf("read with error: %v", err)
		}
		if !bytes.Equal(got, []byte{2, 3, 4}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("write larger than capacity", func(t *testing.T) {
		r := NewRing[byte](3)
		r.Write([]byte{1, 2, 3, 4, 5, 6, 7})
		r.CloseWrite()

		got, err := io.ReadAll(r)
		if err != nil {
			t.Errorf("read with error: %v", err)
		}
		if !bytes.Equal(got, []byte{5, 6, 7}) {
			t.Errorf("got=%v", got)
		}
	})
}

func TestRingSnapshot(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 6; i++ {
		r.Add(i)
	}

	snap := r.Snapshot()
	want := []int{3, 4, 5, 6}
	if len(snap) != len(want) {
		t.Fatalf("snapshot len=%d, want %d", len(snap), len(want))
	}
	for i := range want {
		if snap[i] != want[i] {
			t.Errorf("snap[%d]=%d, want %d", i, snap[i], want[i])
		}
	}

	// Snapshot must be a copy, not a view.
	snap[0] = 99
	if again := r.Snapshot(); again[0] != 3 {
		t.Errorf("snapshot aliased ring storage: got %d", again[0])
	}

	// Snapshot does not consume.
	if r.Len() != 4 {
		t.Errorf("len after snapshot=%d, want 4", r.Len())
	}
}

func TestRingTail(t *testing.T) {
	r := NewRing[int](8)
	for i := 1; i <= 5; i++ {
		r.Add(i)
	}

	tail := r.Tail(3)
	want := []int{3, 4, 5}
	for i := range want {
		if tail[i] != want[i] {
			t.Errorf("tail[%d]=%d, want %d", i, tail[i], want[i])
		}
	}

	if got := r.Tail(100); len(got) != 5 {
		t.Errorf("oversized tail len=%d, want 5", len(got))
	}
}

func TestRingNextBlocks(t *testing.T) {
	r := NewRing[string](4)

	done := make(chan string, 1)
	go func() {
		v, err := r.Next()
		if err != nil {
			done <- "err:" + err.Error()
			return
		}
		done <- v
	}()

	select {
	case v := <-done:
		t.Fatalf("Next returned %q before any write", v)
	case <-time.After(20 * time.Millisecond):
	}

	r.Add("frame")
	select {
	case v := <-done:
		if v != "frame" {
			t.Errorf("got %q, want frame", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Add")
	}
}

func TestRingNextDone(t *testing.T) {
	r := NewRing[int](2)
	r.Add(7)
	r.CloseWrite()

	if v, err := r.Next(); err != nil || v != 7 {
		t.Fatalf("Next=%d,%v, want 7,nil", v, err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrDone) {
		t.Fatalf("Next err=%v, want ErrDone", err)
	}
}

func TestRingCloseWithError(t *testing.T) {
	r := NewRing[int](2)
	boom := errors.New("boom")
	r.CloseWithError(boom)

	if _, err := r.Next(); !errors.Is(err, boom) {
		t.Errorf("Next err=%v, want wrapped boom", err)
	}
	if err := r.Add(1); !errors.Is(err, boom) {
		t.Errorf("Add err=%v, want wrapped boom", err)
	}
	if got := r.Err(); !errors.Is(got, boom) {
		t.Errorf("Err=%v, want boom", got)
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing[float32](4)
	r.Write([]float32{0.1, 0.2, 0.3})
	r.Reset()

	if r.Len() != 0 {
		t.Errorf("len after reset=%d", r.Len())
	}
	r.Write([]float32{0.5})
	if snap := r.Snapshot(); len(snap) != 1 || snap[0] != 0.5 {
		t.Errorf("snapshot after reset=%v", snap)
	}
}
