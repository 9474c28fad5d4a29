package gnaw

import (
	"math/rand/v2"
	"time"
	"unsafe"
)

// eater is the single background loop that degrades tracked memory.
// Once armed it runs until the process exits; no stop state exists.
type eater struct {
	profile hungerProfile
	reg     *registry
	draws   int
}

func (e *eater) loop() {
	// The eater owns its random source; sharing one with allocating
	// threads would put contention on the hot path.
	rng := rand.New(rand.NewPCG(
		uint64(time.Now().UnixNano()),
		uint64(uintptr(unsafe.Pointer(e))),
	))
	e.sleep(rng, e.profile.firstBite)
	for {
		e.sleep(rng, e.profile.interval)
		for range e.profile.bites {
			e.bite(rng)
		}
	}
}

// sleep jitters around the mean interval, 50% to 150%, so bites never
// settle into a rhythm the victim could mask.
func (e *eater) sleep(rng *rand.Rand, d time.Duration) {
	if d >= forever {
		time.Sleep(forever)
		return
	}
	time.Sleep(time.Duration((0.5 + rng.Float64()) * float64(d)))
}

// bite samples one tracked range and clears a few of its bits in
// place. The write is deliberately unsynchronized with the memory's
// owner; it only ever drops bits to zero and never leaves the span
// recorded at sampling time.
func (e *eater) bite(rng *rand.Rand) {
	if e.profile.bits == 0 {
		return
	}
	rec, ok := e.reg.sample(rng, e.draws)
	if !ok {
		return
	}
	for range e.profile.bits {
		off := uintptr(rng.Uint64N(rec.size))
		p := (*byte)(unsafe.Pointer(rec.addr + off))
		*p &^= 1 << rng.UintN(8)
	}
}
