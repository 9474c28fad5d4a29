// Package gnaw is a drop-in raw allocator that slowly eats the
// memory it hands out. It tracks long-lived allocations and, from a
// single background goroutine, clears small groups of bits inside
// them at random so running programs degrade without crashing,
// logging, or otherwise announcing what happened. Alloc, Free and
// Realloc behave exactly like the system delegate alone; the damage
// shows up only through the host program's own behavior.
package gnaw

import (
	"sync/atomic"
	"unsafe"
)

// Heap implements the Allocator contract over the system delegate
// while feeding the eater. All methods are safe for concurrent use
// and never allocate from the Go heap.
type Heap struct {
	config Config
	sys    Allocator
	reg    *registry
	eat    eater
	armed  atomic.Bool
}

var awakenInit atomic.Int32

// Awaken installs the chaos allocator with the given hunger, Hungry
// when omitted. It can be called once per process; there is no way to
// pause or disable the eater afterwards.
func Awaken(hunger ...Hunger) *Heap {
	config := &Config{}
	if len(hunger) > 0 {
		config.Hunger = hunger[0]
	}
	return AwakenConfig(config)
}

// AwakenConfig is Awaken with registry tuning.
func AwakenConfig(config *Config) *Heap {
	if awakenInit.Add(1) != 1 {
		panic("gnaw can only awaken once")
	}
	config.load()
	return newHeap(config, malloc)
}

func newHeap(config *Config, sys Allocator) (h *Heap) {
	h = &Heap{config: *config, sys: sys}
	h.reg = newRegistry(config.Capacity)
	h.eat = eater{
		profile: config.Hunger.profile(),
		reg:     h.reg,
		draws:   config.SampleDraws,
	}
	return
}

// Alloc delegates and then tracks the allocation when it is large
// enough to be worth eating. A full or contended registry skips
// tracking; the caller gets the memory either way.
func (h *Heap) Alloc(size uint) unsafe.Pointer {
	ptr := h.sys.Alloc(size)
	if ptr != nil && size >= h.config.MinTracked {
		h.reg.insert(uintptr(ptr), uint64(size))
	}
	h.arm()
	return ptr
}

// Free untracks ptr before releasing it so the eater stops sampling
// the range first.
func (h *Heap) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	h.reg.remove(uintptr(ptr))
	h.sys.Free(ptr)
}

// Realloc resizes by alloc+copy+free, the delegate contract has no
// resize. Tracking moves to the new address; when the new allocation
// fails the old one and its record survive unchanged, age included.
func (h *Heap) Realloc(ptr unsafe.Pointer, oldSize, newSize uint) unsafe.Pointer {
	if ptr == nil {
		return h.Alloc(newSize)
	}
	if newSize == 0 {
		h.Free(ptr)
		return nil
	}
	rec, tracked := h.reg.remove(uintptr(ptr))
	np := h.sys.Alloc(newSize)
	if np == nil {
		if tracked {
			h.reg.insertAged(rec.addr, rec.size, rec.age)
		}
		return nil
	}
	n := oldSize
	if newSize < n {
		n = newSize
	}
	if n > 0 {
		copy(unsafe.Slice((*byte)(np), n), unsafe.Slice((*byte)(ptr), n))
	}
	h.sys.Free(ptr)
	if newSize >= h.config.MinTracked {
		h.reg.insert(uintptr(np), uint64(newSize))
	}
	h.arm()
	return np
}

// arm spawns the eater on the first allocation. Every later call
// observes armed and returns; the transition never reverses.
func (h *Heap) arm() {
	if h.armed.Load() {
		return
	}
	if !h.armed.CompareAndSwap(false, true) {
		return
	}
	go h.eat.loop()
}
