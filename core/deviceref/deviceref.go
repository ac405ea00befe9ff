// Package deviceref gives the rest of the interceptor a single handle shape
// for "the host's rendering device", whether that is a generation-9 device
// (one COM object, one vtable) or a generation-11 device+immediate-context
// pair (two COM objects, two vtables). Every raw pointer exposed here is an
// *unowned* view into an object the host created; AddRef/Release wrap the
// COM calls directly rather than pretending to manage the lifetime.
//
// Grounded on the _ID3D11Device / _ID3D11DeviceContext / _IDXGISwapChain
// vtable-wrapper pattern used for real D3D11 COM interop in Go (raw
// `*struct{ ...uintptr }` vtables invoked through syscall.Syscall), adapted
// here to cover both API generations behind one Device interface.
package deviceref

import (
	"fmt"
	"syscall"
	"unsafe"
)

// Generation identifies which rendering API family a Device belongs to.
type Generation int

const (
	// Generation9 is the fixed-function/early-programmable API: one COM
	// device object serves as both resource factory and draw-call target.
	Generation9 Generation = iota
	// Generation11 is the immediate-context API: device (resource factory)
	// and context (draw-call target) are split into two COM objects.
	Generation11
)

func (g Generation) String() string {
	switch g {
	case Generation9:
		return "generation9"
	case Generation11:
		return "generation11"
	default:
		return fmt.Sprintf("generation(%d)", int(g))
	}
}

// unknownVtbl is the layout every COM interface starts with: QueryInterface,
// AddRef, Release, in that order. Every vtable struct in this system embeds
// it first so a raw pointer can always be treated as an IUnknown for
// refcounting purposes regardless of its concrete interface.
type unknownVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
}

// comObject is the generic shape of any COM interface pointer: a pointer to
// a pointer to a vtable whose first three slots are QueryInterface/AddRef/
// Release. Every device/context pointer flowing through this package is
// stored as one of these.
type comObject struct {
	vtbl *unknownVtbl
}

// AddRef increments the COM object's reference count and returns the new
// count, exactly mirroring the real IUnknown::AddRef ABI (stdcall, THIS-only
// argument, returns the refcount in eax/rax).
func addRef(p unsafe.Pointer) uint32 {
	if p == nil {
		return 0
	}
	obj := (*comObject)(p)
	r, _, _ := syscall.Syscall(obj.vtbl.AddRef, 1, uintptr(p), 0, 0)
	return uint32(r)
}

// release decrements the COM object's reference count and returns the new
// count.
func release(p unsafe.Pointer) uint32 {
	if p == nil {
		return 0
	}
	obj := (*comObject)(p)
	r, _, _ := syscall.Syscall(obj.vtbl.Release, 1, uintptr(p), 0, 0)
	return uint32(r)
}

// Device is the uniform handle the rest of the interceptor holds per hooked
// device. For Generation9 the DrawTarget and ResourceFactory pointers are
// identical (one COM object plays both roles); for Generation11 they differ
// (device creates resources, context issues draws).
type Device struct {
	Gen Generation

	// ResourceFactory is the COM object GPU resources (buffers, textures,
	// declarations/input layouts) are created through.
	ResourceFactory unsafe.Pointer

	// DrawTarget is the COM object draw/state-setting calls are issued
	// through. Equal to ResourceFactory on generation 9.
	DrawTarget unsafe.Pointer
}

// NewGeneration9 builds a Device for the fixed-function API, where the
// single device pointer is both resource factory and draw target.
func NewGeneration9(device unsafe.Pointer) *Device {
	return &Device{Gen: Generation9, ResourceFactory: device, DrawTarget: device}
}

// NewGeneration11 builds a Device for the immediate-context API.
func NewGeneration11(device, context unsafe.Pointer) *Device {
	return &Device{Gen: Generation11, ResourceFactory: device, DrawTarget: context}
}

// AddRef adds a reference to the device's resource factory object (the one
// whose refcount the accountant tracks; on generation 11 the context is
// typically not separately refcounted by this system).
func (d *Device) AddRef() uint32 {
	return addRef(d.ResourceFactory)
}

// Release drops a reference to the device's resource factory object and
// returns the resulting refcount.
func (d *Device) Release() uint32 {
	return release(d.ResourceFactory)
}

// Identity returns a value suitable for use as a map key identifying this
// device uniquely across hook callbacks (the handle-table lookup keyed by
// device/context pointer described in the design notes).
func (d *Device) Identity() uintptr {
	return uintptr(d.ResourceFactory)
}
