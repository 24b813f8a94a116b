package arena

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocStable(t *testing.T) {
	a := New[int](4)
	var hs []Handle
	for i := 0; i < 10; i++ {
		hs = append(hs, a.Alloc(i))
	}
	p := a.At(hs[1])
	for i := 0; i < 100; i++ {
		a.Alloc(i)
	}
	assert.Same(t, p, a.At(hs[1]))
	for i, h := range hs {
		assert.Equal(t, i, *a.At(h))
	}
	assert.Equal(t, 110, a.Len())
}

func TestCopyOversize(t *testing.T) {
	a := New[byte](4)
	s := a.Copy([]byte("hello, world"))
	require.Equal(t, 12, s.Len())
	if diff := cmp.Diff("hello, world", string(a.Slice(s))); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, a.Slice(a.Copy(nil)))
}

func TestSliceCapacityClipped(t *testing.T) {
	a := New[int](16)
	s1 := a.Copy([]int{1, 2})
	s2 := a.Copy([]int{3, 4})
	got := append(a.Slice(s1), 99)
	assert.Equal(t, []int{1, 2, 99}, got)
	assert.Equal(t, []int{3, 4}, a.Slice(s2))
}

func TestRelease(t *testing.T) {
	a := New[string](2)
	a.Alloc("keep")
	m := a.Mark()
	for i := 0; i < 7; i++ {
		a.Alloc("tmp")
	}
	a.Release(m)
	assert.Equal(t, 1, a.Len())
	h := a.Alloc("next")
	assert.Equal(t, "next", *a.At(h))
	assert.Equal(t, 2, a.Len())
}

func TestLock(t *testing.T) {
	a := New[int](8)
	a.Alloc(1)
	before := a.Mark()
	a.Alloc(2)
	a.Lock()
	assert.True(t, a.Locked())
	m := a.Mark()
	a.Alloc(3)
	a.Release(m)
	assert.Equal(t, 2, a.Len())
	assert.Panics(t, func() { a.Release(before) })
	a.Unlock()
	assert.False(t, a.Locked())
	a.Release(before)
	assert.Equal(t, 1, a.Len())
	assert.Panics(t, func() { a.Unlock() })
}

func TestPoolScope(t *testing.T) {
	p := NewPool[int](4)
	body := p.Permanent.Copy([]int{1, 2, 3})
	release := p.Scope()
	p.Scratch.Copy([]int{4, 5, 6, 7, 8})
	inner := p.Scope()
	p.Scratch.Alloc(9)
	inner()
	assert.Equal(t, 5, p.Scratch.Len())
	release()
	assert.Equal(t, 0, p.Scratch.Len())
	assert.Equal(t, []int{1, 2, 3}, p.Permanent.Slice(body))
}
