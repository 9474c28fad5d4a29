package gnaw

import (
	"math/rand/v2"
	"sync/atomic"
	"unsafe"

	"go.yuchanns.xyz/xxchan"
)

// record is one tracked allocation. The age tag orders records by
// insertion; a smaller tag means an older allocation.
type record struct {
	addr uintptr
	size uint64
	age  uint64
}

// slot publishes through addr: a zero addr marks the slot empty, and
// size/age are only meaningful while addr is set.
type slot struct {
	addr atomic.Uintptr
	size atomic.Uint64
	age  atomic.Uint64
}

// registry is a fixed-capacity table of live allocations. All
// operations are non-blocking and never touch the Go heap; the table
// itself lives in delegate memory so tracking stays invisible to the
// garbage collector.
type registry struct {
	slots []slot
	free  *xxchan.Channel[int]
	next  atomic.Int64
	clock atomic.Uint64
}

func newRegistry(capacity int) (r *registry) {
	r = (*registry)(malloc.Alloc(uint(unsafe.Sizeof(registry{}))))
	slots := unsafe.Slice(
		(*slot)(malloc.Alloc(uint(unsafe.Sizeof(slot{}))*uint(capacity))),
		capacity,
	)
	for i := range slots {
		slots[i].addr.Store(0)
		slots[i].size.Store(0)
		slots[i].age.Store(0)
	}
	r.slots = slots
	ptr := malloc.Alloc(uint(xxchan.Sizeof[int](capacity)))
	r.free = xxchan.Make[int](ptr, capacity)
	r.next.Store(0)
	r.clock.Store(0)
	return
}

func (r *registry) insert(addr uintptr, size uint64) bool {
	return r.insertAged(addr, size, r.clock.Add(1))
}

// insertAged keeps an explicit age tag so a rolled-back reallocation
// does not lose its seniority.
func (r *registry) insertAged(addr uintptr, size, age uint64) bool {
	if addr == 0 || size == 0 {
		return false
	}
	i, ok := r.claim()
	if !ok {
		return false
	}
	s := &r.slots[i]
	s.size.Store(size)
	s.age.Store(age)
	s.addr.Store(addr)
	return true
}

// claim hands out an empty slot index: recycled first, then the
// high-water mark, then by evicting the oldest record.
func (r *registry) claim() (int, bool) {
	if i, ok := r.free.Pop(); ok {
		return i, true
	}
	n := r.next.Add(1)
	if n <= int64(len(r.slots)) {
		return int(n - 1), true
	}
	r.next.Add(-1)
	return r.evict()
}

// evict clears the oldest occupied slot and hands it to the caller.
// Bookkeeping only; the evicted allocation's memory is untouched and
// stays valid. Losing the claim race abandons the insert, tracking is
// best-effort.
func (r *registry) evict() (victim int, ok bool) {
	var oldest uint64
	var addr uintptr
	for i := range r.slots {
		a := r.slots[i].addr.Load()
		if a == 0 {
			continue
		}
		age := r.slots[i].age.Load()
		if !ok || age < oldest {
			victim, oldest, addr, ok = i, age, a, true
		}
	}
	if !ok {
		return 0, false
	}
	if !r.slots[victim].addr.CompareAndSwap(addr, 0) {
		return 0, false
	}
	return victim, true
}

// remove untracks addr. A miss is not an error; the allocation was
// simply never tracked or already evicted.
func (r *registry) remove(addr uintptr) (rec record, ok bool) {
	if addr == 0 {
		return
	}
	n := r.occupiedRange()
	for i := 0; i < n; i++ {
		s := &r.slots[i]
		if s.addr.Load() != addr {
			continue
		}
		size := s.size.Load()
		age := s.age.Load()
		if !s.addr.CompareAndSwap(addr, 0) {
			continue
		}
		// The pool holds each index at most once, it cannot fill.
		r.free.Push(i)
		return record{addr: addr, size: size, age: age}, true
	}
	return
}

// sample draws k slots uniformly and returns the oldest occupied one.
// The returned record may describe memory that has since been freed;
// callers accept that race.
func (r *registry) sample(rng *rand.Rand, k int) (rec record, ok bool) {
	n := r.occupiedRange()
	if n == 0 || k <= 0 {
		return
	}
	for range k {
		s := &r.slots[rng.IntN(n)]
		addr := s.addr.Load()
		if addr == 0 {
			continue
		}
		size := s.size.Load()
		age := s.age.Load()
		if size == 0 || s.addr.Load() != addr {
			continue
		}
		if !ok || age < rec.age {
			rec = record{addr: addr, size: size, age: age}
			ok = true
		}
	}
	return
}

func (r *registry) occupiedRange() (n int) {
	n = int(r.next.Load())
	if n > len(r.slots) {
		n = len(r.slots)
	}
	return
}

func (r *registry) release() {
	malloc.Free(unsafe.Pointer(r.free))
	malloc.Free(unsafe.Pointer(&r.slots[0]))
	malloc.Free(unsafe.Pointer(r))
}
