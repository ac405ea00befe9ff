// Package core is the top-level owner that wires every other core/ package
// into one object per hooked device: constructed when the host creates its
// device, consulted on every draw and frame boundary, and purged
// synchronously the moment the accountant reports the device is one
// Release away from destruction.
//
// Shaped after a builder-constructed-orchestrator (a single struct holding
// every subsystem, built once via functional options and handed out as an
// interface-free concrete pointer), adapted from a background-goroutine
// lifecycle to this system's single-threaded-cooperative one: there is no
// background goroutine trio here, because every entry point below runs
// synchronously on the host's own rendering thread.
package core

import (
	"log"
	"time"
	"unsafe"

	"github.com/brackenfel-labs/modcore/core/accountant"
	"github.com/brackenfel-labs/modcore/core/deviceref"
	"github.com/brackenfel-labs/modcore/core/frameloop"
	"github.com/brackenfel-labs/modcore/core/input"
	"github.com/brackenfel-labs/modcore/core/intercept"
	"github.com/brackenfel-labs/modcore/core/modreg"
	"github.com/brackenfel-labs/modcore/core/patch"
	"github.com/brackenfel-labs/modcore/core/selection"
	"github.com/brackenfel-labs/modcore/core/shadow"
)

// recentWindow implements the per-generation "recently rendered" width:
// generation 9 advances total_frames on every true Present (window 2),
// generation 11 advances it once per frame-loop invocation, itself driven
// by the coarser 20,000-draw probe (window 6).
func recentWindow(gen deviceref.Generation) uint64 {
	if gen == deviceref.Generation11 {
		return 6
	}
	return 2
}

// snapshotAdapter satisfies input.Snapshotter by stamping the frame loop's
// snapshot window with the current wall-clock time, since that package's
// StartSnapshot takes no arguments but frameloop.Loop.StartSnapshot needs
// one (so tests elsewhere can drive it deterministically).
type snapshotAdapter struct {
	loop *frameloop.Loop
}

func (a snapshotAdapter) StartSnapshot() {
	a.loop.StartSnapshot(time.Now())
}

// Core owns one hooked device's entire runtime state.
type Core struct {
	dev       *deviceref.Device
	patcher   *patch.Patcher
	resources modreg.ResourceFactory

	acct     *accountant.Accountant
	registry *modreg.Registry
	shadow   *shadow.State // nil on generation 9
	loop     *frameloop.Loop
	sel      *selection.State
	ic       *intercept.Interceptor
	input    *input.Bindings
	show     *input.ShowModsFlag
	reload   *input.ReloadTrigger

	minFPS       int
	autoLoad     bool
	profile      string
	initCLR      frameloop.InitCLRFunc
	housekeeping frameloop.HousekeepingFunc
	inputPoll    frameloop.InputPollFunc
	foreground   frameloop.ForegroundFunc
	logger       *log.Logger
}

// New constructs a Core for one hooked device. patcher has already patched
// whatever vtable slots this device generation intercepts; resources and
// backend give the mod registry and interceptor their device-side surfaces;
// texCreator and snapshotter give the selection engine and interceptor
// theirs.
func New(
	dev *deviceref.Device,
	patcher *patch.Patcher,
	cb modreg.Callbacks,
	resources modreg.ResourceFactory,
	backend intercept.Backend,
	texCreator selection.TextureCreator,
	snapshotter intercept.Snapshotter,
	opts ...Option,
) *Core {
	c := &Core{
		dev:       dev,
		patcher:   patcher,
		resources: resources,
		minFPS:    30,
		profile:   "fk",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.acct = accountant.New()
	c.registry = modreg.New(resources, c.acct, c.logger)

	if dev.Gen == deviceref.Generation11 {
		c.shadow = shadow.New()
	}

	c.sel = selection.New(texCreator)
	c.show = input.NewShowModsFlag()
	c.reload = &input.ReloadTrigger{}

	loopOpts := []frameloop.Option{
		frameloop.WithMinFPS(c.minFPS),
		frameloop.WithAutoLoad(c.autoLoad),
	}
	if c.logger != nil {
		loopOpts = append(loopOpts, frameloop.WithLogger(c.logger))
	}
	if c.initCLR != nil {
		loopOpts = append(loopOpts, frameloop.WithInitCLR(c.initCLR))
	}
	if c.housekeeping != nil {
		loopOpts = append(loopOpts, frameloop.WithHousekeeping(c.housekeeping))
	}
	if c.inputPoll != nil {
		loopOpts = append(loopOpts, frameloop.WithInputPoll(c.inputPoll))
	}
	if c.foreground != nil {
		loopOpts = append(loopOpts, frameloop.WithForeground(c.foreground))
	}
	c.loop = frameloop.New(dev, c.registry, cb, loopOpts...)

	c.ic = intercept.New(c.registry, c.sel, c.loop, c.show, backend, snapshotter, c.shadow, recentWindow(dev.Gen), dev.ResourceFactory)
	c.ic.RefcountProbe = func() uint32 { return accountant.Probe(dev) }

	c.input = input.New(input.ResolveProfile(c.profile), c.registry, dev, c.sel, c.show, c.reload, c.loop, snapshotAdapter{c.loop})

	return c
}

// Tick runs the frame-boundary work, called from Present on generation 9
// and from the 20,000-draw probe on generation 11.
func (c *Core) Tick(now time.Time) {
	if c.reload.Pending() {
		c.loop.ResetLoadState()
	}
	c.loop.Tick(now)
}

// OnDraw must be called once per draw so generation 11's probe interval has
// a draw-count signal independent of any present hook; it reports whether
// this draw should also drive a Tick. It also drives the faster,
// independent 250-draw input-command poll, if one was configured via
// WithInputPoll.
func (c *Core) OnDraw(now time.Time) (shouldTick bool) {
	return c.loop.OnDraw(now)
}

// DrawGen9 handles a generation-9 DrawIndexedPrimitive call. passthrough
// issues the real pre-hook draw.
func (c *Core) DrawGen9(primCount, vertCount uint32, passthrough func()) {
	c.ic.DrawGen9(primCount, vertCount, passthrough)
}

// DrawGen11 handles a generation-11 DrawIndexed call. passthrough issues the
// real pre-hook draw.
func (c *Core) DrawGen11(indexCount uint32, passthrough func()) {
	c.ic.DrawGen11(indexCount, passthrough)
}

// Shadow exposes the render-state shadow for generation 11's IASet* hook
// thunks to update; nil on generation 9, where no shadow is needed.
func (c *Core) Shadow() *shadow.State {
	return c.shadow
}

// OnShaderResourceSet folds a texture stage's binding into selection-mode
// bookkeeping: observing it for the active list, and marking the stage if
// it carries the currently-selected texture. Hook thunks for
// PSSetShaderResources (and SetTexture on generation 9) call this once per
// bound stage before issuing the real call.
func (c *Core) OnShaderResourceSet(stage int, tex unsafe.Pointer) {
	c.sel.ObserveTexture(tex)
	c.sel.ResolveStage(stage, tex)
}

// Dispatch forwards a keystroke to the input command bindings.
func (c *Core) Dispatch(key int, modifierHeld bool) {
	c.input.Dispatch(key, modifierHeld)
}

// OnHostRelease handles the host's release path: postRC is the refcount
// the real Release call just returned. If it indicates the host's own
// reference is the last one left, this purges every resource the registry
// and selection engine hold and zeroes the accountant, and reports true so
// the caller knows the device is about to be destroyed. The caller still
// owns issuing its own Release/cleanup around the hook; this only tears
// down what this system allocated.
func (c *Core) OnHostRelease(postRC uint32) bool {
	if !c.acct.IsDeviceAboutToDie(postRC) {
		return false
	}
	c.purge()
	return true
}

func (c *Core) purge() {
	c.registry.Clear(c.dev)
	c.sel.Release(c.resources.Release)
	c.sel.ClearTextureLists()
	c.acct.Reset()
}
