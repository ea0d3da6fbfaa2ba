package arena

import "testing"

func TestArenaAllocDistinctAndCrossesChunks(t *testing.T) {
	a := New[int]()
	ptrs := make([]*int, chunkSize*2+5)
	for i := range ptrs {
		p := a.Alloc()
		*p = i
		ptrs[i] = p
	}
	for i, p := range ptrs {
		if *p != i {
			t.Fatalf("ptrs[%d] = %d, want %d (aliasing across chunks?)", i, *p, i)
		}
	}
	if got := a.Len(); got != len(ptrs) {
		t.Errorf("Len() = %d, want %d", got, len(ptrs))
	}
}

func TestArenaAllocValue(t *testing.T) {
	a := New[string]()
	p := a.AllocValue("hello")
	if *p != "hello" {
		t.Errorf("AllocValue returned %q, want %q", *p, "hello")
	}
}

func TestArenaReset(t *testing.T) {
	a := New[int]()
	a.Alloc()
	a.Alloc()
	a.Reset()
	if got := a.Len(); got != 0 {
		t.Errorf("Len() after Reset = %d, want 0", got)
	}
}

func TestInternerDedup(t *testing.T) {
	in := NewInterner()
	a := in.Intern("foo")
	b := in.Intern("foo")
	if a != b {
		t.Error("Intern should return the same pointer for equal strings")
	}
	c := in.Intern("bar")
	if a == c {
		t.Error("Intern should return distinct pointers for distinct strings")
	}
}

func TestInternerReset(t *testing.T) {
	in := NewInterner()
	a := in.Intern("foo")
	in.Reset()
	b := in.Intern("foo")
	if a == b {
		t.Error("Reset should invalidate prior interning so a fresh pointer is returned")
	}
}
