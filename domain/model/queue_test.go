package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeferredQueue_FIFO(t *testing.T) {
	q := NewDeferredQueue()
	assert.Equal(t, 0, q.Len())

	_, ok := q.Pop()
	assert.False(t, ok, "pop on empty queue must not block or panic")

	q.Push(DeferredEntry{ID: "a", Fingerprint: "fp-a"})
	q.Push(DeferredEntry{ID: "b", Fingerprint: "fp-b"})
	assert.Equal(t, 2, q.Len())

	first, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "a", first.ID)

	second, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "b", second.ID)

	assert.Equal(t, 0, q.Len())
}
