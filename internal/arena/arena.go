// Package arena provides chunked allocation with handles. Objects are never
// freed individually; a whole region above a mark is released at once.
package arena

import "fmt"

const DefaultChunkSize = 1024

// Handle refers to a single object allocated from an Arena.
type Handle struct {
	chunk int32
	index int32
}

// Span refers to a contiguous run of objects allocated from an Arena.
type Span struct {
	chunk int32
	off   int32
	n     int32
}

// Len returns the number of objects in the span.
func (s Span) Len() int { return int(s.n) }

// Mark is a position in an Arena that can be released back to.
type Mark struct {
	chunk int
	used  int
}

// Arena allocates values of type T from fixed-size chunks. A chunk never
// grows once created, so slices returned by Slice stay valid until the
// region holding them is released.
type Arena[T any] struct {
	chunkSize int
	chunks    [][]T
	locks     []Mark
}

// New creates an arena whose chunks hold chunkSize objects.
func New[T any](chunkSize int) *Arena[T] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Arena[T]{chunkSize: chunkSize}
}

func (a *Arena[T]) reserve(n int) int {
	if len(a.chunks) > 0 {
		top := a.chunks[len(a.chunks)-1]
		if cap(top)-len(top) >= n {
			return len(a.chunks) - 1
		}
	}
	size := a.chunkSize
	if n > size {
		size = n
	}
	a.chunks = append(a.chunks, make([]T, 0, size))
	return len(a.chunks) - 1
}

// Alloc stores v and returns its handle.
func (a *Arena[T]) Alloc(v T) Handle {
	c := a.reserve(1)
	a.chunks[c] = append(a.chunks[c], v)
	return Handle{chunk: int32(c), index: int32(len(a.chunks[c]) - 1)}
}

// At resolves a handle. The pointer is stable for the life of the object.
func (a *Arena[T]) At(h Handle) *T {
	return &a.chunks[h.chunk][h.index]
}

// Copy stores a run of values contiguously and returns its span.
func (a *Arena[T]) Copy(vs []T) Span {
	if len(vs) == 0 {
		return Span{}
	}
	c := a.reserve(len(vs))
	off := len(a.chunks[c])
	a.chunks[c] = append(a.chunks[c], vs...)
	return Span{chunk: int32(c), off: int32(off), n: int32(len(vs))}
}

// Slice resolves a span. The result has its capacity clipped so appends
// never write into neighbouring allocations.
func (a *Arena[T]) Slice(s Span) []T {
	if s.n == 0 {
		return nil
	}
	end := s.off + s.n
	return a.chunks[s.chunk][s.off:end:end]
}

// Len reports the number of live objects.
func (a *Arena[T]) Len() int {
	n := 0
	for _, c := range a.chunks {
		n += len(c)
	}
	return n
}

// Mark returns the current allocation position.
func (a *Arena[T]) Mark() Mark {
	if len(a.chunks) == 0 {
		return Mark{}
	}
	return Mark{chunk: len(a.chunks) - 1, used: len(a.chunks[len(a.chunks)-1])}
}

func (m Mark) before(o Mark) bool {
	return m.chunk < o.chunk || (m.chunk == o.chunk && m.used < o.used)
}

// Release frees everything allocated after m. Releasing below the most
// recent lock is a programming error and panics.
func (a *Arena[T]) Release(m Mark) {
	if n := len(a.locks); n > 0 && m.before(a.locks[n-1]) {
		panic(fmt.Sprintf("arena: release to %v below lock %v", m, a.locks[n-1]))
	}
	if len(a.chunks) == 0 {
		return
	}
	var zero T
	for len(a.chunks)-1 > m.chunk {
		top := a.chunks[len(a.chunks)-1]
		for i := range top {
			top[i] = zero
		}
		a.chunks = a.chunks[:len(a.chunks)-1]
	}
	top := a.chunks[m.chunk]
	for i := m.used; i < len(top); i++ {
		top[i] = zero
	}
	a.chunks[m.chunk] = top[:m.used]
}

// Lock freezes everything allocated so far. Locks nest.
func (a *Arena[T]) Lock() Mark {
	m := a.Mark()
	a.locks = append(a.locks, m)
	return m
}

// Unlock removes the most recent lock.
func (a *Arena[T]) Unlock() {
	if len(a.locks) == 0 {
		panic("arena: unlock without lock")
	}
	a.locks = a.locks[:len(a.locks)-1]
}

// Locked reports whether any lock is held.
func (a *Arena[T]) Locked() bool { return len(a.locks) > 0 }
