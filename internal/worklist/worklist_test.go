package worklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorklist_FIFOAndDedup(t *testing.T) {
	w := New(1, 2, 2, 3)
	assert.Equal(t, 3, w.Len())

	got := []int{}
	for {
		item, ok := w.Pop()
		if !ok {
			break
		}
		got = append(got, item)
		if item == 1 {
			assert.False(t, w.Push(1), "popped item must not be queued again")
			assert.True(t, w.Push(4))
		}
	}

	assert.Equal(t, []int{1, 2, 3, 4}, got)
	assert.Equal(t, 0, w.Len())
	assert.True(t, w.Seen(4))
	assert.False(t, w.Seen(5))
}

func TestWorklist_EmptyPop(t *testing.T) {
	w := New[string]()
	_, ok := w.Pop()
	assert.False(t, ok)

	assert.True(t, w.Push("a"))
	item, ok := w.Pop()
	assert.True(t, ok)
	assert.Equal(t, "a", item)
}
