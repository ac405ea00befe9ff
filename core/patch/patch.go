// Package patch overwrites function pointers in a COM vtable so the host's
// calls through it land in this system's hook thunks instead of the real
// implementation. This is the only mechanism by which draw-call
// interception is possible; there is no supported alternative.
//
// Shaped after the vtable-struct-over-raw-pointer technique used throughout
// the d3d11_windows.go COM bindings, combined with golang.org/x/sys/windows
// for the page-protection transition, which nothing else in this codebase
// has an analog for (nothing else here patches foreign code).
package patch

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Slot identifies one vtable entry to overwrite: its byte offset from the
// start of the vtable, and the replacement function pointer.
type Slot struct {
	Offset  uintptr
	NewFunc uintptr
}

// Patcher owns the set of original function pointers it overwrote, so it can
// restore them later. Not safe for concurrent Patch/Unpatch calls against the
// same vtable; callers must patch at a quiescent moment per the design
// notes (bootstrap, before the table is in use for rendering).
type Patcher struct {
	vtable unsafe.Pointer
	saved  map[uintptr]uintptr // offset -> original function pointer
}

// New creates a Patcher bound to a specific vtable base pointer.
func New(vtable unsafe.Pointer) *Patcher {
	return &Patcher{vtable: vtable, saved: make(map[uintptr]uintptr)}
}

// Patch overwrites each given slot with its replacement function pointer,
// saving the original so Unpatch can restore it. For each slot the page
// containing it is temporarily marked writable, the pointer is swapped, and
// the page's original protection is restored before moving to the next
// slot. If a VirtualProtect call fails, Patch stops immediately and returns
// an error identifying which slot failed; any slots already patched in this
// call remain patched (callers should Unpatch on error if they want to roll
// back completely).
func (p *Patcher) Patch(slots []Slot) error {
	for _, s := range slots {
		addr := uintptr(p.vtable) + s.Offset
		orig, err := writePointer(addr, s.NewFunc)
		if err != nil {
			return fmt.Errorf("patch: slot at offset %d: %w", s.Offset, err)
		}
		p.saved[s.Offset] = orig
	}
	return nil
}

// Unpatch restores every slot this Patcher has overwritten, in no
// particular order, and clears its saved-pointer table. Safe to call even
// if Patch partially failed or was never called.
func (p *Patcher) Unpatch() error {
	for offset, orig := range p.saved {
		addr := uintptr(p.vtable) + offset
		if _, err := writePointer(addr, orig); err != nil {
			return fmt.Errorf("unpatch: slot at offset %d: %w", offset, err)
		}
		delete(p.saved, offset)
	}
	return nil
}

// Original returns the function pointer that occupied the given slot before
// it was patched, so a hook thunk can call through to the real
// implementation. Returns 0, false if the slot was never patched by this
// Patcher.
func (p *Patcher) Original(offset uintptr) (uintptr, bool) {
	v, ok := p.saved[offset]
	return v, ok
}

// writePointer relaxes page protection at addr to PAGE_EXECUTE_READWRITE,
// writes newVal as a uintptr-sized slot, restores the prior protection, and
// returns the value that was there before the write.
func writePointer(addr uintptr, newVal uintptr) (uintptr, error) {
	const size = unsafe.Sizeof(uintptr(0))

	var oldProtect uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_EXECUTE_READWRITE, &oldProtect); err != nil {
		return 0, fmt.Errorf("VirtualProtect relax: %w", err)
	}

	slot := (*uintptr)(unsafe.Pointer(addr))
	orig := *slot
	*slot = newVal

	var unused uint32
	if err := windows.VirtualProtect(addr, size, oldProtect, &unused); err != nil {
		return 0, fmt.Errorf("VirtualProtect restore: %w", err)
	}
	return orig, nil
}

// CopyVtable allocates a fresh writable page, copies count uintptr-sized
// entries from src into it, and returns a pointer to the copy. Generation 11
// uses this once at hook-install time instead of repeatedly toggling page
// protection per call site, since its vtable is shared across more
// intercepted entry points.
func CopyVtable(src unsafe.Pointer, count int) (unsafe.Pointer, error) {
	size := uintptr(count) * unsafe.Sizeof(uintptr(0))

	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("VirtualAlloc: %w", err)
	}

	srcSlots := unsafe.Slice((*uintptr)(src), count)
	dstSlots := unsafe.Slice((*uintptr)(unsafe.Pointer(addr)), count)
	copy(dstSlots, srcSlots)

	var oldProtect uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_EXECUTE_READWRITE, &oldProtect); err != nil {
		return nil, fmt.Errorf("VirtualProtect: %w", err)
	}

	return unsafe.Pointer(addr), nil
}
