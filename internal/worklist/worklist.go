// Package worklist provides a FIFO queue that admits each item at most once.
package worklist

// Worklist is a seen-set plus FIFO queue. An item pushed once is never
// queued again, even after it has been popped. The zero value is not usable;
// create one with New.
type Worklist[T comparable] struct {
	seen  map[T]struct{}
	queue []T
	head  int
}

// New returns a worklist seeded with items.
func New[T comparable](items ...T) *Worklist[T] {
	w := &Worklist[T]{seen: make(map[T]struct{}, len(items))}
	w.PushAll(items...)
	return w
}

// Push queues item unless it was seen before and reports whether it was queued.
func (w *Worklist[T]) Push(item T) bool {
	if _, ok := w.seen[item]; ok {
		return false
	}
	w.seen[item] = struct{}{}
	w.queue = append(w.queue, item)
	return true
}

// PushAll pushes every item in order.
func (w *Worklist[T]) PushAll(items ...T) {
	for _, item := range items {
		w.Push(item)
	}
}

// Pop removes and returns the oldest queued item.
func (w *Worklist[T]) Pop() (T, bool) {
	var zero T
	if w.head == len(w.queue) {
		return zero, false
	}
	item := w.queue[w.head]
	w.queue[w.head] = zero
	w.head++
	if w.head == len(w.queue) {
		w.queue = w.queue[:0]
		w.head = 0
	}
	return item, true
}

// Len returns the number of queued items.
func (w *Worklist[T]) Len() int {
	return len(w.queue) - w.head
}

// Seen reports whether item was ever pushed.
func (w *Worklist[T]) Seen(item T) bool {
	_, ok := w.seen[item]
	return ok
}
