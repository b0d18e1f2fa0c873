package outbox

import (
	"testing"
)

// contents walks the outbox from the front.
func contents[T any](o *Outbox[T]) []T {
	var out []T
	for it := o.Front(); it.Valid(); it.Next() {
		out = append(out, it.Value())
	}
	return out
}

func equal(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func current(t *testing.T, o *Outbox[uint32]) uint32 {
	t.Helper()
	c := o.Current()
	if c == nil {
		t.Fatal("Current() = nil")
	}
	return *c
}

func TestCreate(t *testing.T) {
	var o Outbox[uint32]
	it := o.Front()
	if o.Current() != nil {
		t.Error("new outbox has a current entry")
	}
	if it.Get() != nil || it.Valid() {
		t.Error("Front() of empty outbox is not null")
	}
	if !o.Empty() || o.Len() != 0 {
		t.Error("new outbox is not empty")
	}
}

func TestEmplace(t *testing.T) {
	o := New[uint32]()

	o.Emplace(523)
	if got := current(t, o); got != 523 {
		t.Fatalf("current = %d, want 523", got)
	}
	if o.Empty() {
		t.Fatal("outbox empty after Emplace")
	}

	o.Next()
	if o.Current() != nil {
		t.Fatal("current not nil after advancing past the tail")
	}

	// nothing current: the appended entry becomes current
	o.Emplace(286)
	if got := current(t, o); got != 286 {
		t.Fatalf("current = %d, want 286", got)
	}

	// something current: current is left alone
	o.Emplace(364)
	if got := current(t, o); got != 286 {
		t.Fatalf("current = %d, want 286", got)
	}

	if got := contents(o); !equal(got, []uint32{523, 286, 364}) {
		t.Errorf("contents = %v", got)
	}
}

func TestEmplaceFront(t *testing.T) {
	o := New[uint32]()
	o.EmplaceFront(1)
	if got := current(t, o); got != 1 {
		t.Fatalf("current = %d, want 1", got)
	}
	o.EmplaceFront(2)
	if got := current(t, o); got != 2 {
		t.Fatalf("current = %d, want 2", got)
	}
	if got := contents(o); !equal(got, []uint32{2, 1}) {
		t.Errorf("contents = %v", got)
	}
}

func TestEmplaceFrontMovesCurrentBack(t *testing.T) {
	o := New[uint32]()
	o.Emplace(1)
	o.Emplace(2)
	o.Next() // 1 sent
	o.Next() // 2 sent
	o.EmplaceFront(9)
	if got := current(t, o); got != 9 {
		t.Fatalf("current = %d, want 9", got)
	}
	o.Next()
	if got := current(t, o); got != 1 {
		t.Fatalf("after Next current = %d, want 1", got)
	}
}

func TestRemoveAdvancesIterator(t *testing.T) {
	o := New[uint32]()
	for i := uint32(1); i <= 4; i++ {
		o.Emplace(i)
	}
	o.Next()
	o.Next()

	// walk past the tail: removal through a null iterator is a no-op
	it := o.Front()
	for i := 0; i < 4; i++ {
		it.Next()
	}
	o.Remove(&it)
	if it.Get() != nil {
		t.Fatal("iterator past the tail is not null")
	}
	if got := current(t, o); got != 3 {
		t.Fatalf("current = %d, want 3", got)
	}
	if o.Len() != 4 {
		t.Fatalf("Len = %d, want 4", o.Len())
	}

	// remove the tail: iterator becomes null
	it = o.Front()
	it.Next()
	it.Next()
	it.Next()
	o.Remove(&it)
	if it.Get() != nil {
		t.Fatal("iterator not null after removing the tail")
	}
	if got := current(t, o); got != 3 {
		t.Fatalf("current = %d, want 3", got)
	}

	// remove the head: iterator moves to the successor
	it = o.Front()
	o.Remove(&it)
	if p := it.Get(); p == nil || *p != 2 {
		t.Fatalf("iterator = %v, want 2", p)
	}
	if got := current(t, o); got != 3 {
		t.Fatalf("current = %d, want 3", got)
	}

	it = o.Front()
	o.Remove(&it)
	if p := it.Get(); p == nil || *p != 3 {
		t.Fatalf("iterator = %v, want 3", p)
	}
	if got := current(t, o); got != 3 {
		t.Fatalf("current = %d, want 3", got)
	}

	// remove the current entry through an iterator
	it = o.Front()
	o.Remove(&it)
	if it.Get() != nil {
		t.Error("iterator not null after removing the last entry")
	}
	if o.Current() != nil {
		t.Error("current not nil after removing the last entry")
	}
	if !o.Empty() {
		t.Error("outbox not empty")
	}
}

func TestRemoveWithNothingCurrent(t *testing.T) {
	o := New[uint32]()
	o.Emplace(1)
	o.Emplace(2)
	o.Next()
	o.Next()

	it := o.Front()
	if o.Current() != nil {
		t.Fatal("current not nil")
	}
	if p := it.Get(); p == nil || *p != 1 {
		t.Fatalf("front = %v, want 1", p)
	}
	it.Next()
	if p := it.Get(); p == nil || *p != 2 {
		t.Fatalf("second = %v, want 2", p)
	}

	o.Remove(&it)
	if o.Current() != nil {
		t.Error("current not nil after removing the tail")
	}
	if it.Get() != nil {
		t.Error("iterator not null after removing the tail")
	}

	it = o.Front()
	if p := it.Get(); p == nil || *p != 1 {
		t.Fatalf("front = %v, want 1", p)
	}
	o.Remove(&it)
	if it.Get() != nil || !o.Empty() {
		t.Error("outbox not empty after removing every entry")
	}
}

func TestRemoveCurrent(t *testing.T) {
	o := New[uint32]()
	for i := uint32(1); i <= 4; i++ {
		o.Emplace(i)
	}

	o.RemoveCurrent()
	if got := current(t, o); got != 2 {
		t.Fatalf("current = %d, want 2", got)
	}

	o.Next()
	o.RemoveCurrent()
	if got := current(t, o); got != 4 {
		t.Fatalf("current = %d, want 4", got)
	}

	o.RemoveCurrent()
	if o.Current() != nil {
		t.Fatal("current not nil after removing the tail")
	}
	if got := contents(o); !equal(got, []uint32{2}) {
		t.Errorf("contents = %v, want [2]", got)
	}

	// no-op without a current entry
	o.RemoveCurrent()
	if o.Len() != 1 {
		t.Errorf("Len = %d, want 1", o.Len())
	}
}

func TestOtherIteratorsSurviveRemoval(t *testing.T) {
	o := New[uint32]()
	for i := uint32(1); i <= 3; i++ {
		o.Emplace(i)
	}

	first := o.Front()
	last := o.Front()
	last.Next()
	last.Next()

	middle := o.Front()
	middle.Next()
	o.Remove(&middle)

	if p := first.Get(); p == nil || *p != 1 {
		t.Errorf("first = %v, want 1", p)
	}
	if p := last.Get(); p == nil || *p != 3 {
		t.Errorf("last = %v, want 3", p)
	}
	first.Next()
	if p := first.Get(); p == nil || *p != 3 {
		t.Errorf("first.Next() = %v, want 3", p)
	}
}

func TestStaleIterator(t *testing.T) {
	o := New[uint32]()
	o.Emplace(1)
	stale := o.Front()
	o.RemoveCurrent()
	o.Emplace(2) // reuses the freed slot

	if stale.Valid() || stale.Get() != nil {
		t.Fatal("iterator to a removed entry is still valid")
	}
	o.Remove(&stale)
	if o.Len() != 1 {
		t.Fatal("removal through a stale iterator removed an entry")
	}

	defer func() {
		if recover() == nil {
			t.Error("Value() on a stale iterator did not panic")
		}
	}()
	_ = stale.Value()
}

func TestPointerStability(t *testing.T) {
	o := New[uint32]()
	p := o.Emplace(7)
	for i := uint32(0); i < 100; i++ {
		o.Emplace(i)
	}
	if *p != 7 {
		t.Fatalf("pointer changed value: %d", *p)
	}
	*p = 8
	if got := o.Front().Value(); got != 8 {
		t.Errorf("write through pointer not visible: %d", got)
	}
}

func TestClear(t *testing.T) {
	o := New[[]byte]()
	o.Emplace([]byte("a"))
	o.Emplace([]byte("b"))
	it := o.Front()

	o.Clear()
	if !o.Empty() || o.Current() != nil || o.Front().Valid() {
		t.Fatal("outbox not empty after Clear")
	}
	if it.Valid() {
		t.Error("iterator survived Clear")
	}

	o.Emplace([]byte("c"))
	if got := o.Current(); got == nil || string(*got) != "c" {
		t.Errorf("current after Clear and Emplace = %v", got)
	}
}

// TestStateModel drives the outbox with a fixed sequence of operations and checks it
// against a slice model after every step.
func TestStateModel(t *testing.T) {
	o := New[uint32]()
	var model []uint32
	cur := -1 // index into model, -1 = none

	check := func(step int) {
		t.Helper()
		if got := contents(o); !equal(got, model) {
			t.Fatalf("step %d: contents %v, model %v", step, got, model)
		}
		if o.Empty() != (len(model) == 0) || o.Len() != len(model) {
			t.Fatalf("step %d: Empty/Len disagree with model", step)
		}
		if cur == -1 {
			if o.Current() != nil {
				t.Fatalf("step %d: current %d, model none", step, *o.Current())
			}
			return
		}
		if c := o.Current(); c == nil || *c != model[cur] {
			t.Fatalf("step %d: current %v, model %d", step, c, model[cur])
		}
	}

	var next uint32
	for step := 0; step < 2000; step++ {
		next++
		switch (step * 7919) % 6 {
		case 0, 1:
			model = append(model, next)
			if cur == -1 {
				cur = len(model) - 1
			}
			o.Emplace(next)
		case 2:
			model = append([]uint32{next}, model...)
			cur = 0
			o.EmplaceFront(next)
		case 3:
			if cur != -1 {
				cur++
				if cur == len(model) {
					cur = -1
				}
			}
			o.Next()
		case 4:
			if cur != -1 {
				model = append(model[:cur], model[cur+1:]...)
				if cur == len(model) {
					cur = -1
				}
			}
			o.RemoveCurrent()
		case 5:
			if len(model) == 0 {
				o.Remove(&Iterator[uint32]{})
				break
			}
			k := step % len(model)
			it := o.Front()
			for i := 0; i < k; i++ {
				it.Next()
			}
			model = append(model[:k], model[k+1:]...)
			switch {
			case cur == k && k == len(model):
				cur = -1
			case cur > k:
				cur--
			}
			o.Remove(&it)
			if k < len(model) {
				if p := it.Get(); p == nil || *p != model[k] {
					t.Fatalf("step %d: iterator did not move to successor", step)
				}
			} else if it.Valid() {
				t.Fatalf("step %d: iterator not null after removing tail", step)
			}
		}
		check(step)
	}

	for !o.Empty() {
		it := o.Front()
		o.Remove(&it)
	}
	if o.Current() != nil || o.Front().Valid() {
		t.Error("drained outbox still has entries")
	}
}

func TestSteadyStateDoesNotAllocate(t *testing.T) {
	o := New[[]byte]()
	payload := make([]byte, 16)
	for i := 0; i < 8; i++ {
		o.Emplace(payload)
	}
	for !o.Empty() {
		o.RemoveCurrent()
	}

	allocs := testing.AllocsPerRun(1000, func() {
		o.Emplace(payload)
		o.RemoveCurrent()
	})
	if allocs != 0 {
		t.Errorf("Emplace+RemoveCurrent allocated %.1f times per run", allocs)
	}
}
