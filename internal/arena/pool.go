package arena

// Pool pairs an arena for data that lives for the whole run with one for
// temporary data released when the operation that needed it completes.
type Pool[T any] struct {
	Permanent *Arena[T]
	Scratch   *Arena[T]
}

func NewPool[T any](chunkSize int) *Pool[T] {
	return &Pool[T]{
		Permanent: New[T](chunkSize),
		Scratch:   New[T](chunkSize),
	}
}

// Scope marks the scratch arena and returns a func releasing back to it.
func (p *Pool[T]) Scope() (release func()) {
	m := p.Scratch.Mark()
	return func() { p.Scratch.Release(m) }
}
