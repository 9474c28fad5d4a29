package gnaw

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRng() *rand.Rand {
	return rand.New(rand.NewPCG(0x6e61, 0x7767))
}

func TestRegistryInsertRemove(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	r := newRegistry(8)
	t.Cleanup(r.release)

	assert.True(r.insert(0x1000, 128))
	assert.True(r.insert(0x2000, 256))

	rec, ok := r.remove(0x1000)
	assert.True(ok)
	assert.Equal(uintptr(0x1000), rec.addr)
	assert.Equal(uint64(128), rec.size)

	_, ok = r.remove(0x1000)
	assert.False(ok)
	_, ok = r.remove(0x3000)
	assert.False(ok)

	rec, ok = r.remove(0x2000)
	assert.True(ok)
	assert.Equal(uint64(256), rec.size)
}

func TestRegistryRejectsZero(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	r := newRegistry(4)
	t.Cleanup(r.release)

	assert.False(r.insert(0, 128))
	assert.False(r.insert(0x1000, 0))
	_, ok := r.remove(0)
	assert.False(ok)
}

func TestRegistrySlotReuse(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	r := newRegistry(4)
	t.Cleanup(r.release)

	for i := uintptr(1); i <= 4; i++ {
		assert.True(r.insert(i*0x1000, 64))
	}
	_, ok := r.remove(0x2000)
	assert.True(ok)

	// The freed slot is recycled without growing the table.
	assert.True(r.insert(0x5000, 64))
	assert.Equal(int64(4), r.next.Load())
}

func TestRegistryEvictsOldest(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	r := newRegistry(4)
	t.Cleanup(r.release)

	for i := uintptr(1); i <= 4; i++ {
		assert.True(r.insert(i*0x1000, 64))
	}
	assert.True(r.insert(0x5000, 64))

	// The first record was the oldest and lost its slot; everything
	// else is still tracked.
	_, ok := r.remove(0x1000)
	assert.False(ok)
	for i := uintptr(2); i <= 5; i++ {
		_, ok := r.remove(i * 0x1000)
		assert.True(ok)
	}
}

func TestRegistryEvictionLeavesMemoryAlone(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	r := newRegistry(2)
	t.Cleanup(r.release)

	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = 0xA5
	}

	// Eviction is bookkeeping only; here the oldest record covers a
	// real buffer that must stay untouched and writable.
	assert.True(r.insert(addrOf(buf), 64))
	assert.True(r.insert(uintptr(0x2000), 64))
	assert.True(r.insert(uintptr(0x3000), 64))

	_, ok := r.remove(addrOf(buf))
	assert.False(ok)

	for i := range buf {
		assert.Equal(byte(0xA5), buf[i])
		buf[i] = 0x5A
	}
}

func TestRegistrySampleEmpty(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	r := newRegistry(4)
	t.Cleanup(r.release)

	_, ok := r.sample(testRng(), 4)
	assert.False(ok)
}

func TestRegistrySamplePrefersOldest(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	r := newRegistry(8)
	t.Cleanup(r.release)

	assert.True(r.insert(0x1000, 64))
	assert.True(r.insert(0x2000, 64))
	assert.True(r.insert(0x3000, 64))

	// With far more draws than occupied slots every slot is seen, so
	// the oldest record must win.
	rec, ok := r.sample(testRng(), 64)
	assert.True(ok)
	assert.Equal(uintptr(0x1000), rec.addr)
}

func TestRegistryConcurrent(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	const (
		workers = 8
		rounds  = 2000
	)

	r := newRegistry(32768)
	t.Cleanup(r.release)

	live := make([]map[uintptr]bool, workers)

	var wg sync.WaitGroup
	for w := range workers {
		live[w] = make(map[uintptr]bool)
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(w), 42))
			mine := live[w]
			base := uintptr((w + 1) << 24)
			for i := range rounds {
				addr := base + uintptr(i)*16
				if r.insert(addr, 64) {
					mine[addr] = true
				}
				if rng.IntN(2) == 0 {
					if _, ok := r.remove(addr); ok {
						delete(mine, addr)
					}
				}
			}
		}(w)
	}
	wg.Wait()

	// Every occupied slot maps back to an insert that was not removed,
	// and no address appears twice.
	tracked := make(map[uintptr]bool)
	for i := range r.slots {
		addr := r.slots[i].addr.Load()
		if addr == 0 {
			continue
		}
		assert.False(tracked[addr], "duplicate address in registry")
		tracked[addr] = true

		w := int(addr>>24) - 1
		assert.True(live[w][addr], "registry holds a removed address")
	}
}
