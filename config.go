package gnaw

import "math/bits"

const (
	defaultCapacity    = 65536
	defaultMinTracked  = 64
	defaultSampleDraws = 4
)

func alignPow2(x uint) uint {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len(x-1)
}

// Config tunes the registry. Zero values take the defaults; the
// configuration is consumed once by AwakenConfig and never changes
// afterwards.
type Config struct {
	// Hunger selects the corruption profile. Default Hungry.
	Hunger Hunger
	// Capacity is the number of allocations tracked at once, rounded
	// up to a power of two. Overflow evicts the oldest record.
	Capacity int
	// MinTracked is the smallest allocation size worth tracking.
	MinTracked uint
	// SampleDraws is how many occupied slots a sample inspects before
	// keeping the oldest.
	SampleDraws int
}

func (c *Config) load() {
	if c.Hunger == 0 {
		c.Hunger = Hungry
	}
	if c.Capacity <= 0 {
		c.Capacity = defaultCapacity
	}
	c.Capacity = int(alignPow2(uint(c.Capacity)))
	if c.MinTracked == 0 {
		c.MinTracked = defaultMinTracked
	}
	if c.SampleDraws <= 0 {
		c.SampleDraws = defaultSampleDraws
	}
}
