package gateway

import "testing"

func TestReplayBuffer_Since(t *testing.T) {
	rb := NewReplayBuffer(100)

	// Odd seqs belong to user 1, even to user 2.
	for i := int64(1); i <= 10; i++ {
		rb.Push(i, 2-i%2, []byte("msg"))
	}

	got := rb.Since(4, 1)
	if len(got) != 3 {
		t.Fatalf("Since(4, user 1): expected 3, got %d", len(got))
	}
	for i, e := range got {
		want := int64(5 + 2*i)
		if e.Seq != want {
			t.Errorf("entry[%d].Seq = %d, want %d", i, e.Seq, want)
		}
	}
	if n := len(rb.Since(10, 2)); n != 0 {
		t.Errorf("nothing after the newest seq, got %d", n)
	}
}

func TestReplayBuffer_Wraparound(t *testing.T) {
	rb := NewReplayBuffer(5) // tiny buffer

	// Push 8 entries; the first 3 are evicted.
	for i := int64(1); i <= 8; i++ {
		rb.Push(i, 1, []byte("msg"))
	}

	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}
	if rb.Oldest() != 4 {
		t.Errorf("Oldest() = %d, want 4", rb.Oldest())
	}

	got := rb.Since(0, 1)
	if len(got) != 5 {
		t.Fatalf("Since(0): expected 5, got %d", len(got))
	}
	if got[0].Seq != 4 || got[4].Seq != 8 {
		t.Errorf("seqs = %d..%d, want 4..8", got[0].Seq, got[4].Seq)
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	rb := NewReplayBuffer(10)
	if got := rb.Since(0, 1); len(got) != 0 {
		t.Fatalf("empty buffer Since should return 0, got %d", len(got))
	}
	if rb.Oldest() != 0 {
		t.Errorf("Oldest() on empty = %d", rb.Oldest())
	}
}

func TestReplayBuffer_CopiesData(t *testing.T) {
	rb := NewReplayBuffer(2)
	data := []byte("abc")
	rb.Push(1, 1, data)
	data[0] = 'x'
	if got := string(rb.Since(0, 1)[0].Data); got != "abc" {
		t.Errorf("buffer aliased caller slice: %q", got)
	}
}

func TestReplayBuffer_SeqGaps(t *testing.T) {
	rb := NewReplayBuffer(4)
	rb.Push(2, 1, []byte("a"))
	rb.Push(5, 1, []byte("b"))
	rb.Push(5, 1, []byte("dup")) // not newer, ignored

	if rb.Oldest() != 2 {
		t.Errorf("Oldest() = %d, want 2", rb.Oldest())
	}
	got := rb.Since(0, 1)
	if len(got) != 2 || got[0].Seq != 2 || string(got[1].Data) != "b" {
		t.Fatalf("Since(0) = %+v", got)
	}

	// Pushing 7 moves the window to 4..7, dropping 2.
	rb.Push(7, 1, []byte("c"))
	if rb.Oldest() != 5 {
		t.Errorf("Oldest() = %d, want 5", rb.Oldest())
	}
	if rb.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rb.Len())
	}
}
