// Package accountant keeps the interceptor's net effect on the host device's
// COM refcount at exactly zero across a mod load/clear cycle, and detects
// the moment a device is one release away from destruction so the registry
// can be purged before that happens.
//
// Shaped like the small owned counters mutated under a single mutex found
// elsewhere in this tree's resource-lifetime bookkeeping, combined with the
// raw COM AddRef/Release calls core/deviceref exposes — the refcount probe
// itself has no real precedent elsewhere in this codebase, since nothing
// else here shares device ownership with a host process.
package accountant

import (
	"sync"

	"github.com/brackenfel-labs/modcore/core/deviceref"
)

// Accountant tracks how many references this system currently holds against
// a single device's resource factory object.
type Accountant struct {
	mu               sync.Mutex
	d3dResourceCount uint32
}

// New returns an Accountant with a zero resource count.
func New() *Accountant {
	return &Accountant{}
}

// DeltaAround invokes f, which is expected to create or destroy GPU
// resources against dev, and measures the signed change in dev's refcount
// across the call by bracketing it with an AddRef/Release pair. The caller
// attests to the meaning of the sign: a positive delta from a load pass is
// added to the tracked count, a negative delta from a clear pass is
// subtracted.
func DeltaAround(dev *deviceref.Device, f func()) int64 {
	before := probeRefcount(dev)
	f()
	after := probeRefcount(dev)
	return int64(after) - int64(before)
}

// probeRefcount reads a device's current refcount without altering it: one
// AddRef immediately followed by one Release returns the post-increment
// count, which equals the refcount that existed before the probe plus one,
// so the caller only ever needs this value's deltas, never its absolute
// magnitude.
func probeRefcount(dev *deviceref.Device) uint32 {
	r := dev.AddRef()
	dev.Release()
	return r
}

// Probe exposes probeRefcount to other packages that need a momentary,
// side-effect-free read of a device's refcount — the lifecycle component
// wires this directly to intercept.Interceptor.RefcountProbe.
func Probe(dev *deviceref.Device) uint32 {
	return probeRefcount(dev)
}

// Add records a load pass's net refcount contribution. Negative deltas are
// treated as zero; a load pass should never net-negative the device's
// refcount.
func (a *Accountant) Add(delta int64) {
	if delta <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.d3dResourceCount += uint32(delta)
}

// Subtract records a clear pass's net refcount contribution. Subtracting
// more than is currently tracked clamps to zero rather than underflowing or
// panicking; release builds must never crash on an accounting mismatch.
func (a *Accountant) Subtract(delta int64) {
	if delta <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	d := uint32(delta)
	if d > a.d3dResourceCount {
		a.d3dResourceCount = 0
		return
	}
	a.d3dResourceCount -= d
}

// Count returns the number of references this system currently attributes
// to itself against the device.
func (a *Accountant) Count() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.d3dResourceCount
}

// Reset zeroes the tracked count, used once a purge has released everything
// this system held.
func (a *Accountant) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.d3dResourceCount = 0
}

// IsDeviceAboutToDie reports whether postRC — the refcount the release hook
// just observed after the host's own decrement — equals exactly one more
// than this system's tracked resource count. That equality means the host's
// own reference is the only one left: one more Release (the host's) would
// destroy the device, so the registry must be purged now, synchronously,
// before returning from the hook.
func (a *Accountant) IsDeviceAboutToDie(postRC uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return postRC == a.d3dResourceCount+1
}
