package gnaw

import (
	"math"
	"time"
)

// Hunger selects how often and how hard the eater bites. Full is
// inert; each level above it wakes more often and clears more bits.
type Hunger uint8

// The zero value is reserved so a zero Config can default to Hungry.
const (
	Full Hunger = iota + 1
	Hungry
	Starving
	Devouring
	Insatiable
)

func (h Hunger) String() string {
	switch h {
	case Full:
		return "full"
	case Hungry:
		return "hungry"
	case Starving:
		return "starving"
	case Devouring:
		return "devouring"
	case Insatiable:
		return "insatiable"
	}
	return "unknown"
}

// forever stands in for an infinite interval; the eater never wakes
// from it within the lifetime of a process.
const forever = time.Duration(math.MaxInt64)

type hungerProfile struct {
	firstBite time.Duration // delay before the first wake
	interval  time.Duration // mean interval between wakes
	bites     int           // registry samples per wake
	bits      int           // bits cleared per bite
}

var hungerProfiles = [...]hungerProfile{
	0:          {firstBite: forever, interval: forever, bites: 0, bits: 0},
	Full:       {firstBite: forever, interval: forever, bites: 0, bits: 0},
	Hungry:     {firstBite: time.Second, interval: time.Second, bites: 1, bits: 1},
	Starving:   {firstBite: 0, interval: 200 * time.Millisecond, bites: 2, bits: 2},
	Devouring:  {firstBite: 0, interval: 50 * time.Millisecond, bites: 4, bits: 3},
	Insatiable: {firstBite: 0, interval: 10 * time.Millisecond, bites: 8, bits: 8},
}

func (h Hunger) profile() hungerProfile {
	if int(h) >= len(hungerProfiles) {
		return hungerProfiles[Full]
	}
	return hungerProfiles[h]
}
