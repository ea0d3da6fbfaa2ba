// Package arena implements the bump-allocated region that owns the AST
// nodes produced during one session, plus a string interner.
// Allocation is O(1); individual entries are never freed — the whole
// arena is reclaimed at once by Reset.
package arena

// chunkSize is the number of elements pre-allocated per chunk. Chosen
// large enough that a typical rule's node and literal-pool allocations
// fit within a single chunk.
const chunkSize = 256

// Arena is a generic bump allocator over T. A session holds one
// Arena[ast.Node] for its AST nodes and a separate Interner.
type Arena[T any] struct {
	chunks [][]T
	pos    int
}

// New returns an empty Arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Alloc returns a pointer to a fresh, zero-initialized T living in the
// arena. The pointer is valid until the next Reset.
func (a *Arena[T]) Alloc() *T {
	if len(a.chunks) == 0 || a.pos >= len(a.chunks[len(a.chunks)-1]) {
		a.chunks = append(a.chunks, make([]T, chunkSize))
		a.pos = 0
	}
	chunk := a.chunks[len(a.chunks)-1]
	v := &chunk[a.pos]
	a.pos++
	return v
}

// AllocValue copies v into the arena and returns a pointer to the copy.
func (a *Arena[T]) AllocValue(v T) *T {
	p := a.Alloc()
	*p = v
	return p
}

// Len reports the total number of elements allocated since the last
// Reset.
func (a *Arena[T]) Len() int {
	if len(a.chunks) == 0 {
		return 0
	}
	return (len(a.chunks)-1)*chunkSize + a.pos
}

// Reset invalidates every pointer previously handed out and reclaims
// the underlying storage for reuse. Callers must not dereference a
// pointer obtained before Reset.
func (a *Arena[T]) Reset() {
	a.chunks = nil
	a.pos = 0
}

// Interner deduplicates strings within one session: the first Intern
// call for a given string copies and registers it, later calls with an
// equal string return the same *string.
type Interner struct {
	seen map[string]*string
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{seen: make(map[string]*string)}
}

// Intern returns a stable *string for s, allocating a new backing copy
// only on first occurrence.
func (in *Interner) Intern(s string) *string {
	if p, ok := in.seen[s]; ok {
		return p
	}
	cp := s
	in.seen[s] = &cp
	return &cp
}

// Reset drops all interned strings, invalidating previously returned
// pointers for the purpose of pointer-identity comparison.
func (in *Interner) Reset() {
	in.seen = make(map[string]*string)
}
