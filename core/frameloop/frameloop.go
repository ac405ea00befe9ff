// Package frameloop drives the per-frame-boundary work: CLR bootstrap,
// asynchronous mod-database load polling, FPS smoothing with low-framerate
// hysteresis, and the periodic time-based and draw-count-based housekeeping
// ticks. Generation 9 enters it from Present; generation 11 has no present
// hook and instead probes it every 20,000 draw calls.
//
// Shaped after a profiler package's Tick()-driven, elapsed-time-windowed
// measurement style, and on a scene package's use of
// github.com/Carmen-Shannon/automation/tools/worker for off-thread task
// dispatch — generalized here from "parallel animator prep" to "a single
// long-running mod-database load that must not stall the frame hook".
package frameloop

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/brackenfel-labs/modcore/core/deviceref"
	"github.com/brackenfel-labs/modcore/core/modreg"
)

const (
	fpsWindowFrames      = 90
	fpsSmoothingAlpha    = 0.3
	lowFramerateHysteresis = 1.21 // re-exit low-framerate only above min_fps * 1.21
	diagLogDrawInterval  = 500000
	diagLogMinInterval   = 10 * time.Second
	housekeepingInterval = 1 * time.Second
	snapshotWindow       = 250 * time.Millisecond
	gen11ProbeInterval   = 20000
	inputPollInterval    = 250 // draw calls between input-command polls
)

// clrState is the sticky outcome of the one-time managed-runtime bootstrap.
type clrState int32

const (
	clrNotAttempted clrState = iota
	clrReady
	clrFailed
)

// HousekeepingFunc is invoked at most once per second of wall-clock time,
// independent of frame or draw cadence, for the foreground-window-gated
// lazy bootstrap of the selection texture and input bindings.
type HousekeepingFunc func()

// InitCLRFunc performs the one-time managed-runtime bootstrap. It is called
// at most once, ever, regardless of outcome.
type InitCLRFunc func() error

// InputPollFunc reads the current keyboard state and dispatches whatever
// input commands it finds pressed. Unlike the draw/frame hooks, input
// response must not track render FPS, so it is polled on its own faster
// draw-count cadence (every inputPollInterval draws) rather than once per
// frame or once per second of wall-clock time.
type InputPollFunc func()

// ForegroundFunc reports whether the host's window currently has focus.
// Input polling only runs while the host window is foreground.
type ForegroundFunc func() bool

// Loop owns the frame-cadence state machine for one hooked device.
type Loop struct {
	mu sync.Mutex

	clr        clrState
	minFPS     float64
	smoothedFPS float64
	lowFramerate bool

	frameCountInWindow int
	windowStart        time.Time

	totalFrames uint64
	dipCalls    uint64

	lastHousekeeping time.Time
	lastDiagLog      time.Time
	lastDiagDraws    uint64

	snapStart   time.Time
	isSnapping  bool

	loadingMods     bool
	doneLoadingMods bool
	pool            *worker.DynamicWorkerPool
	loadResult      atomic.Pointer[modreg.LoadingState]

	initCLR      InitCLRFunc
	housekeeping HousekeepingFunc
	inputPoll    InputPollFunc
	foreground   ForegroundFunc
	cb           modreg.Callbacks
	registry     *modreg.Registry
	dev          *deviceref.Device
	autoLoad     bool

	logger *log.Logger
}

// Option configures a Loop at construction, following the reference
// engine's functional-options idiom (engine_builder.go).
type Option func(*Loop)

// WithMinFPS sets the configured minimum acceptable frame rate.
func WithMinFPS(fps int) Option {
	return func(l *Loop) { l.minFPS = float64(fps) }
}

// WithAutoLoad enables or disables automatic mod-database loading on
// startup.
func WithAutoLoad(enabled bool) Option {
	return func(l *Loop) { l.autoLoad = enabled }
}

// WithInitCLR sets the one-time managed-runtime bootstrap function.
func WithInitCLR(f InitCLRFunc) Option {
	return func(l *Loop) { l.initCLR = f }
}

// WithHousekeeping sets the once-per-second lazy-bootstrap callback.
func WithHousekeeping(f HousekeepingFunc) Option {
	return func(l *Loop) { l.housekeeping = f }
}

// WithInputPoll sets the callback invoked every inputPollInterval draw
// calls while the host window is foreground.
func WithInputPoll(f InputPollFunc) Option {
	return func(l *Loop) { l.inputPoll = f }
}

// WithForeground sets the predicate consulted to gate input polling.
// Without one, input polling never runs (treated as always background).
func WithForeground(f ForegroundFunc) Option {
	return func(l *Loop) { l.foreground = f }
}

// WithLogger sets the destination for diagnostic logging.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New constructs a frame loop bound to a device, its mod registry, and the
// managed callback table it polls for load state.
func New(dev *deviceref.Device, registry *modreg.Registry, cb modreg.Callbacks, opts ...Option) *Loop {
	l := &Loop{
		minFPS:      30,
		windowStart: time.Time{},
		dev:         dev,
		registry:    registry,
		cb:          cb,
		pool:        worker.NewDynamicWorkerPool(1, 4, 30*time.Second),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tick runs one frame-boundary invocation. now is the current wall-clock
// time, supplied by the caller so tests can drive it deterministically.
func (l *Loop) Tick(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalFrames++
	l.initCLRIfNeeded()
	l.pollModLoad()
	l.updateFPS(now)
	l.runHousekeeping(now)
	l.closeExpiredSnapshot(now)
	l.logDiagnostics(now)
}

// OnDraw must be called once per draw, so the 500,000-draw diagnostic
// interval, generation-11's 20,000-draw frame-tick probe, and the
// 250-draw input-command poll all have a draw-count signal independent of
// any present hook. Input polling runs inline here, separately from and
// faster than Tick's own once-per-frame cadence, since keyboard response
// must not track render FPS.
func (l *Loop) OnDraw(now time.Time) (shouldProbeFrameTick bool) {
	l.mu.Lock()
	l.dipCalls++
	due := l.dipCalls%gen11ProbeInterval == 0
	pollInput := l.dipCalls%inputPollInterval == 0 && l.inputPoll != nil && l.foreground != nil && l.foreground()
	l.mu.Unlock()

	if pollInput {
		l.inputPoll()
	}
	return due
}

// TotalFrames returns the monotonic frame counter, used by the hot path's
// parent-arbitration recency window.
func (l *Loop) TotalFrames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalFrames
}

// LowFramerate reports whether the draw interceptor should gate all
// substitution and passthrough unconditionally.
func (l *Loop) LowFramerate() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lowFramerate
}

// IsSnapping reports whether a snapshot window is currently open.
func (l *Loop) IsSnapping() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isSnapping
}

// Loading reports whether a mod-database load is currently outstanding,
// satisfying input.LoadingGate so reload/clear commands can refuse to
// interrupt an in-flight load.
func (l *Loop) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadingMods
}

// ResetLoadState clears the done/loading flags so the next Tick treats the
// mod database as needing a fresh load, used by CommandReloadMods.
func (l *Loop) ResetLoadState() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadingMods = false
	l.doneLoadingMods = false
}

// StartSnapshot opens a new 250ms snapshot window, stamping the start time.
// Idempotent: calling it again while a window is already open leaves that
// window and its start time unchanged.
func (l *Loop) StartSnapshot(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isSnapping {
		return
	}
	l.isSnapping = true
	l.snapStart = now
}

func (l *Loop) initCLRIfNeeded() {
	if l.clr != clrNotAttempted || l.initCLR == nil {
		return
	}
	if err := l.initCLR(); err != nil {
		l.clr = clrFailed
		l.logf("frameloop: CLR init failed, disabling mod loading for this session: %v", err)
		return
	}
	l.clr = clrReady
}

func (l *Loop) pollModLoad() {
	if !l.autoLoad || l.doneLoadingMods || l.clr != clrReady {
		return
	}

	if res := l.loadResult.Swap(nil); res != nil {
		l.loadingMods = false
		if *res == modreg.LoadingComplete {
			if err := l.registry.Load(l.dev, l.cb); err != nil {
				l.logf("frameloop: mod registry load failed: %v", err)
			}
			l.doneLoadingMods = true
		}
		return
	}

	if l.loadingMods {
		return
	}

	state := l.cb.LoadingState()
	switch state {
	case modreg.LoadingInProgress:
		l.loadingMods = true
	case modreg.LoadingPending:
		// already requested; wait for it to progress
	default:
		l.loadingMods = true
		l.pool.SubmitTask(worker.Task{
			ID: int(l.totalFrames),
			Do: func() (any, error) {
				result := l.cb.LoadModDB()
				l.loadResult.Store(&result)
				return nil, nil
			},
		})
	}
}

func (l *Loop) updateFPS(now time.Time) {
	if l.windowStart.IsZero() {
		l.windowStart = now
	}
	l.frameCountInWindow++
	if l.frameCountInWindow < fpsWindowFrames {
		return
	}

	elapsed := now.Sub(l.windowStart).Seconds()
	l.frameCountInWindow = 0
	l.windowStart = now
	if elapsed <= 0 {
		return
	}

	instant := float64(fpsWindowFrames) / elapsed
	if l.smoothedFPS == 0 {
		l.smoothedFPS = instant
	} else {
		l.smoothedFPS = fpsSmoothingAlpha*instant + (1-fpsSmoothingAlpha)*l.smoothedFPS
	}

	if !l.lowFramerate && l.smoothedFPS < l.minFPS {
		l.lowFramerate = true
		l.logf("frameloop: entering low-framerate mode, smoothed fps=%.1f below minimum %.1f", l.smoothedFPS, l.minFPS)
	} else if l.lowFramerate && l.smoothedFPS > l.minFPS*lowFramerateHysteresis {
		l.lowFramerate = false
		l.logf("frameloop: exiting low-framerate mode, smoothed fps=%.1f", l.smoothedFPS)
	}
}

func (l *Loop) runHousekeeping(now time.Time) {
	if now.Sub(l.lastHousekeeping) < housekeepingInterval {
		return
	}
	l.lastHousekeeping = now
	if l.housekeeping != nil {
		l.housekeeping()
	}
}

func (l *Loop) closeExpiredSnapshot(now time.Time) {
	if l.isSnapping && now.Sub(l.snapStart) >= snapshotWindow {
		l.isSnapping = false
	}
}

func (l *Loop) logDiagnostics(now time.Time) {
	if l.dipCalls-l.lastDiagDraws < diagLogDrawInterval {
		return
	}
	if now.Sub(l.lastDiagLog) < diagLogMinInterval {
		return
	}
	l.lastDiagDraws = l.dipCalls
	l.lastDiagLog = now
	l.logf("frameloop: %d draws, %d frames, fps=%.1f, low_framerate=%v", l.dipCalls, l.totalFrames, l.smoothedFPS, l.lowFramerate)
}

func (l *Loop) logf(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}
