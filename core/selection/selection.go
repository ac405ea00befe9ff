// Package selection implements the texture-selection and snapshot-trigger
// engine: once the user enters selection mode, every draw's bound textures
// are folded into a de-duplicated list the user can cycle through with
// select_next_texture/select_prev_texture; whichever texture is currently
// selected gets tagged on whatever stage a draw binds it to, so the
// interceptor can overlay a solid marker texture on it.
//
// Shaped after a small stateful-struct style (no direct analog; closest in
// shape to a camera component's plain mutex-guarded fields) combined with
// common.FillSolidBGRA for procedurally building the marker texture instead
// of decoding one from disk.
package selection

import (
	"sync"
	"unsafe"

	"github.com/brackenfel-labs/modcore/common"
)

const (
	maxStages          = 16
	selectionTexSize = 256
	selectionColorB  = 0x00
	selectionColorG  = 0xFF
	selectionColorR  = 0x00
	selectionColorA  = 0xFF
)

// TextureCreator builds the lazily-created solid-color overlay texture from
// raw BGRA8 pixel bytes. Concrete implementations wrap the real device's
// texture-creation call.
type TextureCreator interface {
	CreateBGRATexture(width, height int, pixels []byte) (unsafe.Pointer, error)
}

// State is the selection/snapshot engine for one hooked device.
type State struct {
	mu sync.Mutex

	makingSelection  bool
	activeList       []unsafe.Pointer
	activeSet        map[unsafe.Pointer]struct{}
	currIndex        int
	selectedOnStage  [maxStages]bool

	selectionTexture unsafe.Pointer
	creator          TextureCreator
}

// New constructs selection/snapshot state bound to a texture creator used to
// lazily build the overlay texture.
func New(creator TextureCreator) *State {
	return &State{creator: creator, activeSet: make(map[unsafe.Pointer]struct{})}
}

// EnterSelection switches into texture-selection mode if not already in it.
// Existing accumulated textures are preserved; callers that want a clean
// slate should call ClearTextureLists first.
func (s *State) EnterSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.makingSelection = true
}

// MakingSelection reports whether selection mode is currently active.
func (s *State) MakingSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.makingSelection
}

// ObserveTexture folds a texture handle bound by the current draw into the
// active list, if not already present. No-op outside selection mode.
func (s *State) ObserveTexture(tex unsafe.Pointer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.makingSelection || tex == nil {
		return
	}
	if _, seen := s.activeSet[tex]; seen {
		return
	}
	s.activeSet[tex] = struct{}{}
	s.activeList = append(s.activeList, tex)
}

// SelectNext enters selection mode if needed and advances the selected
// index forward, wrapping at the end of the list.
func (s *State) SelectNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.makingSelection = true
	if len(s.activeList) == 0 {
		return
	}
	s.currIndex = (s.currIndex + 1) % len(s.activeList)
}

// SelectPrev enters selection mode if needed and advances the selected
// index backward, wrapping at the start of the list.
func (s *State) SelectPrev() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.makingSelection = true
	if len(s.activeList) == 0 {
		return
	}
	s.currIndex = (s.currIndex - 1 + len(s.activeList)) % len(s.activeList)
}

// ClearTextureLists resets selection state entirely: exits selection mode,
// drops the accumulated texture list, and resets the index.
func (s *State) ClearTextureLists() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.makingSelection = false
	s.activeList = nil
	s.activeSet = make(map[unsafe.Pointer]struct{})
	s.currIndex = 0
	s.selectedOnStage = [maxStages]bool{}
}

// currentSelected returns the texture handle at currIndex, or nil if the
// list is empty. Caller must hold the mutex.
func (s *State) currentSelected() unsafe.Pointer {
	if len(s.activeList) == 0 || s.currIndex >= len(s.activeList) {
		return nil
	}
	return s.activeList[s.currIndex]
}

// ResolveStage marks stage as bearing the selected texture iff tex matches
// the currently-selected texture and selection mode is active. Called once
// per bound texture stage at the start of a draw, before
// LowestSelectedStage is consulted.
func (s *State) ResolveStage(stage int, tex unsafe.Pointer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stage < 0 || stage >= maxStages {
		return
	}
	s.selectedOnStage[stage] = s.makingSelection && tex != nil && tex == s.currentSelected()
}

// LowestSelectedStage returns the lowest-numbered stage marked by
// ResolveStage this draw, and clears all marks for the next draw. Only the
// lowest stage is ever overlaid.
func (s *State) LowestSelectedStage() (stage int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < maxStages; i++ {
		if s.selectedOnStage[i] {
			stage, ok = i, true
			break
		}
	}
	s.selectedOnStage = [maxStages]bool{}
	return stage, ok
}

// Release releases the procedurally-built overlay texture through
// releaseFunc, if one was ever created, and clears the cached handle so a
// future SelectionTexture call rebuilds it. Called by the lifecycle
// component's purge-on-device-destruction path.
func (s *State) Release(releaseFunc func(unsafe.Pointer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectionTexture != nil && releaseFunc != nil {
		releaseFunc(s.selectionTexture)
	}
	s.selectionTexture = nil
}

// SelectionTexture returns the procedurally-built 256x256 solid-green
// overlay texture, creating it on first use.
func (s *State) SelectionTexture() (unsafe.Pointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectionTexture != nil {
		return s.selectionTexture, nil
	}

	pixels := make([]byte, selectionTexSize*selectionTexSize*4)
	common.FillSolidBGRA(pixels, selectionColorB, selectionColorG, selectionColorR, selectionColorA, selectionTexSize*selectionTexSize)

	tex, err := s.creator.CreateBGRATexture(selectionTexSize, selectionTexSize, pixels)
	if err != nil {
		return nil, err
	}
	s.selectionTexture = tex
	return tex, nil
}
