package gnaw

import (
	"sync/atomic"
	"unsafe"

	"github.com/smasher164/mem"
)

// Allocator is the raw allocation contract gnaw sits in front of.
// Alloc returns nil when the platform refuses the request. Memory
// returned by Alloc is suitably aligned for any scalar type.
type Allocator interface {
	Alloc(size uint) unsafe.Pointer
	Free(ptr unsafe.Pointer)
}

var malloc Allocator

func init() {
	malloc = &defaultAllocator{}
}

var allocInit atomic.Int32

// SetAllocator replaces the system delegate. It can be called once,
// and only before Awaken.
func SetAllocator(alloc Allocator) {
	if alloc == nil {
		panic("allocator cannot be nil")
	}
	if allocInit.Add(1) != 1 {
		panic("allocator can only be set once")
	}
	malloc = alloc
}

type defaultAllocator struct{}

func (a *defaultAllocator) Alloc(size uint) unsafe.Pointer {
	return mem.Alloc(size)
}

func (a *defaultAllocator) Free(ptr unsafe.Pointer) {
	mem.Free(ptr)
}
