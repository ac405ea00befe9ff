package core

import (
	"log"

	"github.com/brackenfel-labs/modcore/core/frameloop"
)

// Option is a functional option for configuring a Core, following the
// reference engine's EngineBuilderOption idiom.
type Option func(*Core)

// WithMinFPS sets the configured minimum acceptable frame rate. Values <= 0
// are treated as the default (30).
//
// Parameters:
//   - fps: minimum acceptable smoothed frames per second
//
// Returns:
//   - Option: option function to apply
func WithMinFPS(fps int) Option {
	return func(c *Core) {
		if fps <= 0 {
			fps = 30
		}
		c.minFPS = fps
	}
}

// WithAutoLoad enables automatic mod-database loading on startup
// (LoadModsOnStart).
//
// Parameters:
//   - enabled: if true, the frame loop polls and loads the mod database
//     without waiting for a reload_mods command
//
// Returns:
//   - Option: option function to apply
func WithAutoLoad(enabled bool) Option {
	return func(c *Core) {
		c.autoLoad = enabled
	}
}

// WithInputProfile sets the configured input profile string (InputProfile),
// resolved to a Profile by input.ResolveProfile at construction time.
//
// Parameters:
//   - profile: the configured profile string ("fk*" or "punct*", default fk)
//
// Returns:
//   - Option: option function to apply
func WithInputProfile(profile string) Option {
	return func(c *Core) {
		c.profile = profile
	}
}

// WithInitCLR sets the one-time managed-runtime bootstrap function run by
// the frame loop's first Tick.
//
// Parameters:
//   - f: the bootstrap function, called at most once regardless of outcome
//
// Returns:
//   - Option: option function to apply
func WithInitCLR(f frameloop.InitCLRFunc) Option {
	return func(c *Core) {
		c.initCLR = f
	}
}

// WithHousekeeping sets the once-per-second lazy-bootstrap callback
// (foreground-window detection, selection-texture/input bootstrap).
//
// Parameters:
//   - f: the housekeeping function, invoked at most once per second
//
// Returns:
//   - Option: option function to apply
func WithHousekeeping(f frameloop.HousekeepingFunc) Option {
	return func(c *Core) {
		c.housekeeping = f
	}
}

// WithInputPoll sets the callback the frame loop invokes every 250 draw
// calls while the host window is foreground, faster than the frame-rate
// driven checks above since keyboard response must not track render FPS.
// Hosts that instead dispatch keystrokes directly via Core.Dispatch as they
// occur have no need for this option.
//
// Parameters:
//   - f: reads the current keyboard state and dispatches whatever commands
//     it finds pressed
//
// Returns:
//   - Option: option function to apply
func WithInputPoll(f frameloop.InputPollFunc) Option {
	return func(c *Core) {
		c.inputPoll = f
	}
}

// WithForeground sets the predicate that gates input polling to when the
// host window has focus. Without one, input polling never runs.
//
// Parameters:
//   - f: reports whether the host's window currently has focus
//
// Returns:
//   - Option: option function to apply
func WithForeground(f frameloop.ForegroundFunc) Option {
	return func(c *Core) {
		c.foreground = f
	}
}

// WithLogger sets the destination for diagnostic logging across every
// wired subsystem.
//
// Parameters:
//   - logger: the logger every subsystem writes through
//
// Returns:
//   - Option: option function to apply
func WithLogger(logger *log.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}
