package fec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolReusesReleasedValues(t *testing.T) {
	allocations := 0
	p := NewPool(
		1,
		func() *int { allocations++; v := 0; return &v },
		func(v *int) { *v = 0 },
		nil,
	)

	h1 := p.Acquire()
	*h1.Value() = 42
	h1.Release()

	h2 := p.Acquire()
	assert.Equal(t, 1, allocations, "second acquire should reuse the freed value")
	assert.Equal(t, 0, *h2.Value(), "reset hook should have cleared the reused value")
}

func TestPoolDropsBeyondCapacity(t *testing.T) {
	allocations := 0
	p := NewPool(
		1,
		func() *int { allocations++; v := 0; return &v },
		nil,
		nil,
	)

	h1 := p.Acquire()
	h2 := p.Acquire()
	h1.Release()
	h2.Release() // free list already has one entry, this one is dropped

	p.Acquire()
	p.Acquire()
	assert.Equal(t, 3, allocations, "only one handle should have been recycled")
}

func TestHandleValuePanicsAfterRelease(t *testing.T) {
	p := NewPool(1, func() *int { v := 0; return &v }, nil, nil)
	h := p.Acquire()
	h.Release()

	assert.Panics(t, func() { h.Value() })
}

func TestHandleReleaseIsIdempotent(t *testing.T) {
	p := NewPool(1, func() *int { v := 0; return &v }, nil, nil)
	h := p.Acquire()
	h.Release()
	require.NotPanics(t, func() { h.Release() })
}

func TestHandleReleaseRunsReleaseHook(t *testing.T) {
	released := 0
	p := NewPool(1, func() *int { v := 0; return &v }, nil, func(*int) { released++ })

	h := p.Acquire()
	h.Release()
	assert.Equal(t, 1, released)
}
