// Package modreg is the in-memory mod index: it loads replacement/deletion
// directives from the managed callback table into GPU-resident resources,
// resolves parent/child relationships between them, and answers the hot
// path's per-draw lookup without taking a lock.
//
// Shaped like a mutex-guarded cache of imported assets keyed by identity,
// generalized from "cache of imported 3D models keyed by file path" to
// "index of mod records keyed by mesh signature, swapped in as an immutable
// snapshot" so the hot draw path never blocks on a lock.
package modreg

import "unsafe"

// Kind identifies what a mod does to the draw it matches.
type Kind int

const (
	// GPUReplacement substitutes a different mesh and up to four textures
	// for the matched draw.
	GPUReplacement Kind = iota
	// Deletion suppresses the matched draw entirely.
	Deletion
	// CPUAdditive draws alongside the original geometry rather than instead
	// of it (original draw still passes through).
	CPUAdditive
	// GPUAdditive is the GPU-resident counterpart of CPUAdditive.
	GPUAdditive
)

func (k Kind) String() string {
	switch k {
	case GPUReplacement:
		return "gpu_replacement"
	case Deletion:
		return "deletion"
	case CPUAdditive:
		return "cpu_additive"
	case GPUAdditive:
		return "gpu_additive"
	default:
		return "unknown"
	}
}

// isAdditive reports whether a mod of this kind still requires the original
// draw to pass through alongside it.
func (k Kind) isAdditive() bool {
	return k == CPUAdditive || k == GPUAdditive
}

// ModNumbers is the fixed-layout numeric block the managed side fills in for
// each mod, mirroring the callback table's wire struct.
type ModNumbers struct {
	ModType        int32
	PrimCount      uint32
	VertCount      uint32
	RefPrimCount   uint32
	RefVertCount   uint32
	VertSizeBytes  uint32
	DeclSizeBytes  uint32
	PrimType       int32
}

// ModData is what callbacks.ModData(i) hands back for one mod index: the
// raw, not-yet-validated description the loader turns into a NativeMod.
type ModData struct {
	Name       string
	ParentName string
	Numbers    ModNumbers
	TexPaths   [4]string
}

// d3dState models generation-11's deferred materialization: a replacement
// mod cannot build its input layout until the hot path has observed the
// input layout currently in use, so the record sits Partial until then.
type d3dState int

const (
	stateUnloaded d3dState = iota
	statePartial
	stateLoaded
)

// NativeMod is one loaded replacement or deletion directive.
type NativeMod struct {
	Name       string
	ParentName string
	Kind       Kind

	RefPrims uint32
	RefVerts uint32

	PrimCount     uint32
	VertCount     uint32
	VertSizeBytes uint32

	VB       unsafe.Pointer
	Decl     unsafe.Pointer
	Textures [4]unsafe.Pointer

	IsParent bool

	lastFrameRendered uint64
	state             d3dState
}

// LoadingState mirrors the managed side's mod-database loading state
// machine. The numeric values are load-bearing: the managed side depends on
// these exact integers crossing the callback boundary.
type LoadingState int32

const (
	LoadingNotStarted LoadingState = 51
	LoadingPending     LoadingState = 52
	LoadingInProgress  LoadingState = 53
	LoadingComplete    LoadingState = 54
)

func (s LoadingState) String() string {
	switch s {
	case LoadingNotStarted:
		return "not_started"
	case LoadingPending:
		return "pending"
	case LoadingInProgress:
		return "in_progress"
	case LoadingComplete:
		return "complete"
	default:
		return "unknown"
	}
}
