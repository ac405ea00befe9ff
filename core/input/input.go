// Package input maps virtual key codes to the fixed command set: reload/
// clear the mod registry, toggle mod visibility, cycle the selection
// texture, clear selection state, and trigger a snapshot. Every binding
// requires its profile's modifier key held, so normal game input is never
// mistaken for a command.
//
// Shaped after a window package's key-code callback style (keyCallback
// registration), generalized from "camera/debug bindings" to "a fixed
// external command table".
package input

import (
	"strings"

	"github.com/brackenfel-labs/modcore/common"
	"github.com/brackenfel-labs/modcore/core/deviceref"
	"github.com/brackenfel-labs/modcore/core/modreg"
	"github.com/brackenfel-labs/modcore/core/selection"
)

// Profile identifies which set of virtual keys the command table binds to.
type Profile int

const (
	ProfileFunctionKeys Profile = iota
	ProfilePunctuation
)

// ResolveProfile parses the configured InputProfile string: values are
// matched case-insensitively by prefix ("fk*" -> function keys, "punct*" ->
// punctuation), defaulting to function keys.
func ResolveProfile(configured string) Profile {
	s := strings.ToLower(strings.TrimSpace(configured))
	if strings.HasPrefix(s, "punct") {
		return ProfilePunctuation
	}
	return ProfileFunctionKeys
}

// Command identifies one of the fixed, bindable operations.
type Command int

const (
	CommandReloadMods Command = iota
	CommandClearMods
	CommandToggleShowMods
	CommandSelectNextTexture
	CommandSelectPrevTexture
	CommandClearTextureLists
	CommandTakeSnapshot
)

// binding pairs a command with the key that triggers it under a profile.
type binding struct {
	key int
	cmd Command
}

func bindingsFor(p Profile) []binding {
	switch p {
	case ProfilePunctuation:
		return []binding{
			{common.KeyLeftBracket, CommandReloadMods},
			{common.KeyRightBracket, CommandClearMods},
			{common.KeySemicolon, CommandToggleShowMods},
			{common.KeyApostrophe, CommandSelectNextTexture},
			{common.KeyComma, CommandSelectPrevTexture},
			{common.KeyPeriod, CommandClearTextureLists},
			{common.KeySlash, CommandTakeSnapshot},
		}
	default:
		return []binding{
			{common.KeyF1, CommandReloadMods},
			{common.KeyF2, CommandClearMods},
			{common.KeyF3, CommandToggleShowMods},
			{common.KeyF4, CommandSelectNextTexture},
			{common.KeyF5, CommandSelectPrevTexture},
			{common.KeyF6, CommandTakeSnapshot},
			{common.KeyF7, CommandClearTextureLists},
		}
	}
}

// ShowModsFlag is the global show-mods gate, flipped by CommandToggleShowMods.
type ShowModsFlag struct {
	show bool
}

// NewShowModsFlag returns a flag starting in the visible state.
func NewShowModsFlag() *ShowModsFlag {
	return &ShowModsFlag{show: true}
}

// Show reports whether mods currently render (intercept.ShowMods contract).
func (f *ShowModsFlag) Show() bool { return f.show }

func (f *ShowModsFlag) toggle() { f.show = !f.show }

// ReloadTrigger is a sticky flag the frame loop polls to know a fresh
// mod-database load was requested by CommandReloadMods.
type ReloadTrigger struct {
	pending bool
}

// Pending reports and clears the reload request.
func (t *ReloadTrigger) Pending() bool {
	p := t.pending
	t.pending = false
	return p
}

// LoadingGate reports whether a mod load is currently in progress, so
// reload/clear commands can refuse to interrupt it.
type LoadingGate interface {
	Loading() bool
}

// Snapshotter opens a new snapshot window.
type Snapshotter interface {
	StartSnapshot()
}

// Bindings owns the live profile's key map and the targets each command
// mutates: the registry, selection state, show-mods flag, reload trigger,
// and snapshot trigger.
type Bindings struct {
	profile  Profile
	table    map[int]Command
	registry *modreg.Registry
	dev      *deviceref.Device
	sel      *selection.State
	show     *ShowModsFlag
	reload   *ReloadTrigger
	loading  LoadingGate
	snap     Snapshotter
}

// New constructs the command table for the given profile, bound to the
// targets each command mutates.
func New(profile Profile, registry *modreg.Registry, dev *deviceref.Device, sel *selection.State, show *ShowModsFlag, reload *ReloadTrigger, loading LoadingGate, snap Snapshotter) *Bindings {
	b := &Bindings{
		profile:  profile,
		registry: registry,
		dev:      dev,
		sel:      sel,
		show:     show,
		reload:   reload,
		loading:  loading,
		snap:     snap,
		table:    make(map[int]Command),
	}
	for _, bd := range bindingsFor(profile) {
		b.table[bd.key] = bd.cmd
	}
	return b
}

// Dispatch looks up key under the held modifier and runs its command, if
// bound. modifierHeld must be true for any command to fire.
func (b *Bindings) Dispatch(key int, modifierHeld bool) {
	if !modifierHeld {
		return
	}
	cmd, ok := b.table[key]
	if !ok {
		return
	}
	b.run(cmd)
}

func (b *Bindings) run(cmd Command) {
	switch cmd {
	case CommandReloadMods:
		if b.loading != nil && b.loading.Loading() {
			return
		}
		b.registry.Clear(b.dev)
		b.reload.pending = true
	case CommandClearMods:
		if b.loading != nil && b.loading.Loading() {
			return
		}
		b.registry.Clear(b.dev)
	case CommandToggleShowMods:
		b.show.toggle()
	case CommandSelectNextTexture:
		b.sel.SelectNext()
	case CommandSelectPrevTexture:
		b.sel.SelectPrev()
	case CommandClearTextureLists:
		b.sel.ClearTextureLists()
	case CommandTakeSnapshot:
		if b.snap != nil {
			b.snap.StartSnapshot()
		}
	}
}
