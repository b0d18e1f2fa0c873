// Package outbox implements the ordered queue of outgoing packets used by an MQTT client.
//
// An Outbox keeps entries in insertion order and tracks a current entry: the next one
// to dispatch. Entries behind the current one have been sent and wait for an
// acknowledgement; they are removed through an Iterator once the matching ack arrives,
// in any order. The Outbox is not safe for concurrent use.
package outbox

// nilIndex marks the end of the list. Slot 0 is never used so the zero Outbox is ready.
const nilIndex = 0

type slot[T any] struct {
	value T
	next  int
	prev  int
	gen   uint32
	live  bool
}

// Outbox is an ordered queue of T with a movable current entry.
// Pointers returned by Emplace, EmplaceFront, Current and Iterator.Get remain
// valid until the entry they refer to is removed. The zero value is an empty Outbox.
type Outbox[T any] struct {
	slots []*slot[T]
	free  []int
	head  int
	tail  int
	curr  int
	size  int
}

// New creates an empty Outbox.
func New[T any]() *Outbox[T] {
	return &Outbox[T]{}
}

// alloc takes a slot from the free list or grows the arena.
func (o *Outbox[T]) alloc(v T) int {
	var idx int
	if n := len(o.free); n > 0 {
		idx = o.free[n-1]
		o.free = o.free[:n-1]
	} else {
		if len(o.slots) == 0 {
			o.slots = append(o.slots, nil)
		}
		o.slots = append(o.slots, &slot[T]{})
		idx = len(o.slots) - 1
	}
	s := o.slots[idx]
	s.value = v
	s.next, s.prev = nilIndex, nilIndex
	s.live = true
	o.size++
	return idx
}

// release returns a slot to the free list and invalidates iterators pointing at it.
func (o *Outbox[T]) release(idx int) {
	s := o.slots[idx]
	var zero T
	s.value = zero
	s.next, s.prev = nilIndex, nilIndex
	s.live = false
	s.gen++
	o.free = append(o.free, idx)
	o.size--
}

// Emplace appends v at the tail and returns a pointer to the stored value.
// When nothing is current, the new entry becomes current.
func (o *Outbox[T]) Emplace(v T) *T {
	idx := o.alloc(v)
	s := o.slots[idx]
	if o.tail == nilIndex {
		o.head = idx
	} else {
		o.slots[o.tail].next = idx
		s.prev = o.tail
	}
	o.tail = idx
	if o.curr == nilIndex {
		o.curr = idx
	}
	return &s.value
}

// EmplaceFront inserts v at the head and makes it current.
func (o *Outbox[T]) EmplaceFront(v T) *T {
	idx := o.alloc(v)
	s := o.slots[idx]
	if o.head == nilIndex {
		o.tail = idx
	} else {
		o.slots[o.head].prev = idx
		s.next = o.head
	}
	o.head = idx
	o.curr = idx
	return &s.value
}

// Current returns the entry to dispatch next, or nil when there is none.
func (o *Outbox[T]) Current() *T {
	if o.curr == nilIndex {
		return nil
	}
	return &o.slots[o.curr].value
}

// Next moves current to its successor. It removes nothing.
func (o *Outbox[T]) Next() {
	if o.curr == nilIndex {
		return
	}
	o.curr = o.slots[o.curr].next
}

// Front returns an iterator at the head, or a null iterator when empty.
func (o *Outbox[T]) Front() Iterator[T] {
	if o.head == nilIndex {
		return Iterator[T]{o: o}
	}
	return Iterator[T]{o: o, idx: o.head, gen: o.slots[o.head].gen}
}

// Remove unlinks the entry referenced by it and moves it to the successor.
// When the removed entry was current, current moves to the successor too.
// Removing through a null or stale iterator does nothing.
func (o *Outbox[T]) Remove(it *Iterator[T]) {
	if it == nil || it.o != o || !it.Valid() {
		return
	}
	next := o.unlink(it.idx)
	it.idx = next
	if next != nilIndex {
		it.gen = o.slots[next].gen
	}
}

// RemoveCurrent removes the current entry; current moves to its successor.
func (o *Outbox[T]) RemoveCurrent() {
	if o.curr == nilIndex {
		return
	}
	o.unlink(o.curr)
}

// unlink removes idx from the list and returns its successor.
func (o *Outbox[T]) unlink(idx int) int {
	s := o.slots[idx]
	next, prev := s.next, s.prev
	if prev == nilIndex {
		o.head = next
	} else {
		o.slots[prev].next = next
	}
	if next == nilIndex {
		o.tail = prev
	} else {
		o.slots[next].prev = prev
	}
	if o.curr == idx {
		o.curr = next
	}
	o.release(idx)
	return next
}

// Empty reports whether the outbox holds no entries.
func (o *Outbox[T]) Empty() bool {
	return o.size == 0
}

// Len returns the number of entries.
func (o *Outbox[T]) Len() int {
	return o.size
}

// Clear removes every entry. Outstanding iterators become stale.
func (o *Outbox[T]) Clear() {
	for idx := o.head; idx != nilIndex; {
		next := o.slots[idx].next
		o.release(idx)
		idx = next
	}
	o.head, o.tail, o.curr = nilIndex, nilIndex, nilIndex
}

// Iterator references one entry of an Outbox. The zero Iterator is null.
type Iterator[T any] struct {
	o   *Outbox[T]
	idx int
	gen uint32
}

// Valid reports whether the iterator references a live entry.
func (it Iterator[T]) Valid() bool {
	if it.o == nil || it.idx <= nilIndex || it.idx >= len(it.o.slots) {
		return false
	}
	s := it.o.slots[it.idx]
	return s.live && s.gen == it.gen
}

// Get returns a pointer to the referenced value, or nil for a null or stale iterator.
func (it Iterator[T]) Get() *T {
	if !it.Valid() {
		return nil
	}
	return &it.o.slots[it.idx].value
}

// Value returns the referenced value. It panics on a null or stale iterator.
func (it Iterator[T]) Value() T {
	if !it.Valid() {
		panic("outbox: dereference of null or removed iterator")
	}
	return it.o.slots[it.idx].value
}

// Next advances the iterator to the following entry; past the tail it becomes null.
func (it *Iterator[T]) Next() {
	if !it.Valid() {
		it.idx = nilIndex
		return
	}
	next := it.o.slots[it.idx].next
	it.idx = next
	if next != nilIndex {
		it.gen = it.o.slots[next].gen
	}
}
