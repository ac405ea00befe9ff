// Package intercept implements the hot path: the draw-call interceptor
// invoked on every generation-9 DrawIndexedPrimitive and generation-11
// DrawIndexed call. It is the only package in this system whose cost is
// paid on every draw, so it touches the registry without a lock, never
// allocates when it can avoid it, and never returns an error distinct from
// what the real draw call would have returned.
//
// Shaped after the draw_indexed / draw_indexed_primitive hook bodies
// (hook_render_d3d11.rs, hookd3d9.rs), translated into an explicit-error-
// return idiom rather than global-mutable-state style.
package intercept

import (
	"sync/atomic"
	"unsafe"

	"github.com/brackenfel-labs/modcore/core/modreg"
	"github.com/brackenfel-labs/modcore/core/selection"
	"github.com/brackenfel-labs/modcore/core/shadow"
)

// IAState is the input-assembler state that must be saved before a
// substitute draw and restored after.
type IAState struct {
	Decl       unsafe.Pointer
	VB         unsafe.Pointer
	VBStride   uint32
	VBOffset   uint32
	IndexBuf   unsafe.Pointer // generation 11 only
	TexStage   [4]unsafe.Pointer
	OverlayTex unsafe.Pointer
	OverlayStage int
	hasOverlay bool
}

// Backend is the narrow surface this package needs against the live device
// to read/write input-assembler and shader-resource state around a
// substitute draw. It isolates the hot path's control flow from the real
// COM calls, the same separation modreg.ResourceFactory draws for loading.
type Backend interface {
	GetInputLayout() unsafe.Pointer
	SetInputLayout(unsafe.Pointer)

	GetVertexBuffer(slot uint32) (buf unsafe.Pointer, stride, offset uint32)
	SetVertexBuffer(slot uint32, buf unsafe.Pointer, stride, offset uint32)

	// GetIndexBuffer/SetIndexBuffer are only called around a substitute draw
	// on generation 11, which binds an index buffer; generation 9's draw
	// path never touches them.
	GetIndexBuffer() unsafe.Pointer
	SetIndexBuffer(unsafe.Pointer)

	GetShaderResource(stage int) unsafe.Pointer
	SetShaderResource(stage int, tex unsafe.Pointer)

	// DrawPrimitives issues a non-indexed triangle-list draw of count
	// vertices starting at 0, against whatever VB/declaration is currently
	// bound.
	DrawPrimitives(vertexCount uint32)
}

// Snapshotter performs the gather-and-invoke sequence for one capture. It is
// given the already-computed prim/vert counts for the current draw.
type Snapshotter interface {
	TakeSnapshot(device unsafe.Pointer, primCount, vertCount uint32) error
}

// Metrics is the subset of frame-cadence state the hot path consults and
// updates on every call: the low-framerate gate, the monotonic frame
// counter for parent-arbitration recency, and whether a snapshot window is
// currently open.
type Metrics interface {
	LowFramerate() bool
	TotalFrames() uint64
	IsSnapping() bool
}

// ShowMods gates whether mods render at all, flipped by the
// toggle_show_mods input command.
type ShowMods interface {
	Show() bool
}

// Interceptor holds the per-device state the hot path needs: the re-entry
// guard, the render-state shadow (generation 11 only, nil on generation 9),
// and references to the registry/selection/metrics components it consults.
type Interceptor struct {
	inDIP atomic.Bool

	registry  *modreg.Registry
	sel       *selection.State
	metrics   Metrics
	showMods  ShowMods
	backend   Backend
	snapshot  Snapshotter
	shadow    *shadow.State // nil on generation 9
	recentWindow uint64
	device    unsafe.Pointer

	// RefcountProbe reports the device's current refcount, used only by
	// the step-5 snapshot leak check. Left nil, the check is skipped;
	// the lifecycle component wires it to the accountant's probe.
	RefcountProbe func() uint32
	leaked        bool
}

// LeakedOnLastSnapshot reports whether the most recent snapshot left the
// device's refcount higher than before it was taken, and clears the flag.
func (ic *Interceptor) LeakedOnLastSnapshot() bool {
	l := ic.leaked
	ic.leaked = false
	return l
}

// New constructs an Interceptor. shadowState is nil for generation 9, since
// that API's draw call already carries both prim and vert counts.
func New(registry *modreg.Registry, sel *selection.State, metrics Metrics, showMods ShowMods, backend Backend, snapshot Snapshotter, shadowState *shadow.State, recentWindow uint64, device unsafe.Pointer) *Interceptor {
	return &Interceptor{
		registry:     registry,
		sel:          sel,
		metrics:      metrics,
		showMods:     showMods,
		backend:      backend,
		snapshot:     snapshot,
		shadow:       shadowState,
		recentWindow: recentWindow,
		device:       device,
	}
}

// DrawGen9 handles generation 9's DrawIndexedPrimitive, which carries the
// vertex and primitive counts as call arguments. passthrough issues the
// original (pre-hook) draw call; the interceptor invokes it directly
// whenever the original geometry must still render, wrapping it with the
// selection overlay bind/restore when that is active.
func (ic *Interceptor) DrawGen9(primCount, vertCount uint32, passthrough func()) {
	ic.handle(primCount, vertCount, passthrough)
}

// DrawGen11 handles generation 11's DrawIndexed, recovering prim/vert counts
// from the render-state shadow before the rest of the pipeline runs. If there
// is no shadow, or its recorded topology is not TriangleList, or the shadow
// cannot recover valid counts, passthrough is invoked unconditionally.
func (ic *Interceptor) DrawGen11(indexCount uint32, passthrough func()) {
	if ic.shadow == nil || ic.shadow.Topology() != shadow.TopologyTriangleList {
		passthrough()
		return
	}
	primCount, vertCount, ok := ic.shadow.ComputePrimVertCount(indexCount)
	if !ok {
		passthrough()
		return
	}
	ic.handle(primCount, vertCount, passthrough)
}

// handle is the shared body of the interception pipeline.
func (ic *Interceptor) handle(primCount, vertCount uint32, passthrough func()) {
	// Step 1: re-entry guard.
	if !ic.inDIP.CompareAndSwap(false, true) {
		passthrough()
		return
	}
	defer ic.inDIP.Store(false)

	// Step 3: low-framerate / hidden-mods gate.
	if ic.metrics.LowFramerate() || (ic.showMods != nil && !ic.showMods.Show()) {
		passthrough()
		return
	}

	// Step 4: selection overlay resolution.
	overlayStage, hasOverlay := ic.sel.LowestSelectedStage()

	// Step 5: snapshot trigger.
	if hasOverlay && ic.metrics.IsSnapping() && ic.snapshot != nil {
		var before uint32
		if ic.RefcountProbe != nil {
			before = ic.RefcountProbe()
		}
		if err := ic.snapshot.TakeSnapshot(ic.device, primCount, vertCount); err == nil && ic.RefcountProbe != nil {
			if after := ic.RefcountProbe(); after > before {
				ic.leaked = true
			}
		}
	}

	// Step 6: bounds check (generation 9 already has valid call-argument
	// counts; generation 11 already filtered via shadow.ComputePrimVertCount).
	if primCount < 3 || vertCount < 3 {
		ic.passthroughWithOverlay(overlayStage, hasOverlay, passthrough)
		return
	}

	// Step 7: mod match.
	bucket := ic.registry.Lookup(vertCount, primCount)
	if len(bucket) == 0 {
		ic.passthroughWithOverlay(overlayStage, hasOverlay, passthrough)
		return
	}

	mod, ok := ic.registry.Select(bucket, ic.metrics.TotalFrames(), ic.recentWindow)
	if !ok {
		ic.passthroughWithOverlay(overlayStage, hasOverlay, passthrough)
		return
	}

	// Step 8: deletion — no draw at all, original included.
	if mod.Kind == modreg.Deletion {
		return
	}

	// Step 9: replacement substitution.
	ic.substitute(mod, overlayStage, hasOverlay)

	if mod.IsParent {
		ic.registry.MarkRendered(mod, ic.metrics.TotalFrames())
	}

	// Step 10: original draw passes through alongside additive mods.
	additive := mod.Kind == modreg.CPUAdditive || mod.Kind == modreg.GPUAdditive
	if additive {
		ic.passthroughWithOverlay(overlayStage, hasOverlay, passthrough)
	}
}

// substitute saves IA state, binds the mod's resources (and the selection
// overlay, if active), issues the substitute draw, and restores everything
// in reverse order.
func (ic *Interceptor) substitute(mod *modreg.NativeMod, overlayStage int, hasOverlay bool) {
	saved := ic.saveIAState(mod, overlayStage, hasOverlay)
	defer ic.restoreIAState(saved)

	for i, tex := range mod.Textures {
		if tex != nil {
			ic.backend.SetShaderResource(i, tex)
		}
	}
	if hasOverlay {
		ic.backend.SetShaderResource(overlayStage, ic.overlayTexture())
	}

	ic.backend.SetInputLayout(mod.Decl)
	ic.backend.SetVertexBuffer(0, mod.VB, mod.VertSizeBytes, 0)
	ic.backend.DrawPrimitives(mod.PrimCount * 3)
}

// passthroughWithOverlay invokes passthrough to issue the original draw,
// binding the selection overlay around it first when active and restoring
// whatever was bound there afterward.
func (ic *Interceptor) passthroughWithOverlay(overlayStage int, hasOverlay bool, passthrough func()) {
	if !hasOverlay {
		passthrough()
		return
	}
	saved := ic.backend.GetShaderResource(overlayStage)
	ic.backend.SetShaderResource(overlayStage, ic.overlayTexture())
	passthrough()
	ic.backend.SetShaderResource(overlayStage, saved)
}

func (ic *Interceptor) overlayTexture() unsafe.Pointer {
	tex, err := ic.sel.SelectionTexture()
	if err != nil {
		return nil
	}
	return tex
}

func (ic *Interceptor) saveIAState(mod *modreg.NativeMod, overlayStage int, hasOverlay bool) IAState {
	var s IAState
	s.Decl = ic.backend.GetInputLayout()
	s.VB, s.VBStride, s.VBOffset = ic.backend.GetVertexBuffer(0)
	for i, tex := range mod.Textures {
		if tex != nil {
			s.TexStage[i] = ic.backend.GetShaderResource(i)
		}
	}
	if ic.shadow != nil {
		s.IndexBuf = ic.backend.GetIndexBuffer()
	}
	if hasOverlay {
		s.OverlayStage = overlayStage
		s.OverlayTex = ic.backend.GetShaderResource(overlayStage)
		s.hasOverlay = true
	}
	return s
}

func (ic *Interceptor) restoreIAState(s IAState) {
	if s.hasOverlay {
		ic.backend.SetShaderResource(s.OverlayStage, s.OverlayTex)
	}
	for i, tex := range s.TexStage {
		if tex != nil {
			ic.backend.SetShaderResource(i, tex)
		}
	}
	if ic.shadow != nil {
		ic.backend.SetIndexBuffer(s.IndexBuf)
	}
	ic.backend.SetVertexBuffer(0, s.VB, s.VBStride, s.VBOffset)
	ic.backend.SetInputLayout(s.Decl)
}
