// Package shadow tracks just enough generation-11 input-assembler state to
// recover (primCount, vertCount) from a DrawIndexed call, which only carries
// an index count. Generation 9's DrawIndexedPrimitive already receives both
// counts as call arguments and never needs this package.
//
// No direct precedent exists for this bookkeeping elsewhere in this tree;
// it is shaped like a small, mutex-guarded, plain-field state struct (in
// the vein of a camera component's field layout) rather than any one file.
package shadow

import "sync"

// InputLayout describes the vertex format a generation-11 input layout was
// created with. The interceptor's registry of layouts-by-pointer (populated
// outside this package, when a layout is created) owns these.
type InputLayout struct {
	SizeBytes uint32
}

// VertexBufferBinding records one currently-bound vertex-buffer stream.
type VertexBufferBinding struct {
	Slot             uint32
	ByteWidth        uint32
	StructureStride  uint32
}

// Topology mirrors the primitive topology enum the host sets via
// IASetPrimitiveTopology. Only TriangleList is ever eligible for modding
// (spec non-goal: arbitrary topologies).
type Topology uint32

const (
	TopologyUndefined Topology = iota
	TopologyTriangleList
	TopologyOther
)

// State is the render-state shadow for one generation-11 device context.
// Safe for concurrent use; in practice all mutators and the one reader
// (compute) run on the same rendering thread per the concurrency model, but
// the mutex costs nothing on that path and protects against the one
// documented exception (a layout being registered from a resource-creation
// call that could, in principle, run on a different thread than Draw).
type State struct {
	mu sync.Mutex

	primTopology       Topology
	currentInputLayout uintptr
	layoutsByPtr       map[uintptr]InputLayout
	vbState            []VertexBufferBinding
}

// New creates an empty render-state shadow.
func New() *State {
	return &State{layoutsByPtr: make(map[uintptr]InputLayout)}
}

// SetTopology records the primitive topology the host just bound.
func (s *State) SetTopology(t Topology) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primTopology = t
}

// SetInputLayout records the input layout the host just bound. A nil
// pointer (ptr == 0) clears the current layout.
func (s *State) SetInputLayout(ptr uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentInputLayout = ptr
}

// RegisterInputLayout records the vertex size of a newly created input
// layout so SetInputLayout/ComputePrimVertCount can recover it later. This
// is called from the layout-creation hook, outside this package's direct
// surface but part of its contract.
func (s *State) RegisterInputLayout(ptr uintptr, sizeBytes uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layoutsByPtr[ptr] = InputLayout{SizeBytes: sizeBytes}
}

// SetVertexBuffers updates the bound-vertex-buffer-stream bookkeeping. An
// empty buffers slice clears all state; otherwise, binding at slot 0 clears
// first (a slot-0 bind always starts a fresh IA configuration in this
// shadow, matching the real API's typical usage pattern), then each
// non-zero buffer is appended.
func (s *State) SetVertexBuffers(startSlot uint32, buffers []uintptr, byteWidths, strides []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(buffers) == 0 {
		s.vbState = nil
		return
	}
	if startSlot == 0 {
		s.vbState = nil
	}
	for i, buf := range buffers {
		if buf == 0 {
			continue
		}
		s.vbState = append(s.vbState, VertexBufferBinding{
			Slot:            startSlot + uint32(i),
			ByteWidth:       byteWidths[i],
			StructureStride: strides[i],
		})
	}
}

// ComputePrimVertCount recovers (primCount, vertCount) from a draw's index
// count: draws with indexCount <= 6 are never meaningful mod targets; the
// vertex stream must be unambiguous (exactly one bound VB); and the current
// input layout's declared vertex size must be known and non-zero. Callers
// must have already checked the topology is TriangleList.
func (s *State) ComputePrimVertCount(indexCount uint32) (primCount, vertCount uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if indexCount <= 6 {
		return 0, 0, false
	}
	primCount = indexCount / 3

	if len(s.vbState) != 1 {
		return 0, 0, false
	}
	vbByteWidth := s.vbState[0].ByteWidth
	if vbByteWidth == 0 {
		return 0, 0, false
	}

	if s.currentInputLayout == 0 {
		return 0, 0, false
	}
	layout, known := s.layoutsByPtr[s.currentInputLayout]
	if !known || layout.SizeBytes == 0 {
		return 0, 0, false
	}

	vertCount = vbByteWidth / layout.SizeBytes
	return primCount, vertCount, true
}

// Topology returns the currently-shadowed primitive topology.
func (s *State) Topology() Topology {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primTopology
}
