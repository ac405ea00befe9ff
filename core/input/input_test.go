package input

import (
	"sync/atomic"
	"syscall"
	"testing"
	"unsafe"

	"github.com/brackenfel-labs/modcore/common"
	"github.com/brackenfel-labs/modcore/core/accountant"
	"github.com/brackenfel-labs/modcore/core/deviceref"
	"github.com/brackenfel-labs/modcore/core/modreg"
	"github.com/brackenfel-labs/modcore/core/selection"
)

type fakeVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
}

type fakeCOMObject struct {
	vtbl *fakeVtbl
}

func newFakeDevice(t *testing.T) *deviceref.Device {
	t.Helper()
	var rc uint32 = 1
	vtbl := &fakeVtbl{
		AddRef:  syscall.NewCallback(func(this uintptr) uintptr { return uintptr(atomic.AddUint32(&rc, 1)) }),
		Release: syscall.NewCallback(func(this uintptr) uintptr { return uintptr(atomic.AddUint32(&rc, ^uint32(0))) }),
	}
	obj := &fakeCOMObject{vtbl: vtbl}
	return deviceref.NewGeneration9(unsafe.Pointer(obj))
}

type fakeResources struct{}

func (fakeResources) CreateVertexBuffer(sizeBytes uint32) (unsafe.Pointer, error) {
	b := make([]byte, sizeBytes)
	return unsafe.Pointer(&b[0]), nil
}
func (fakeResources) LockVertexBuffer(vb unsafe.Pointer, sizeBytes uint32) ([]byte, error) {
	return unsafe.Slice((*byte)(vb), sizeBytes), nil
}
func (fakeResources) UnlockVertexBuffer(vb unsafe.Pointer) error { return nil }
func (fakeResources) CreateInputLayout(declBytes []byte, vertSizeBytes uint32) (unsafe.Pointer, error) {
	b := make([]byte, 8)
	return unsafe.Pointer(&b[0]), nil
}
func (fakeResources) LoadTexture(path string) (unsafe.Pointer, error) {
	b := make([]byte, 4)
	return unsafe.Pointer(&b[0]), nil
}
func (fakeResources) Release(handle unsafe.Pointer) {}

type fakeCreator struct{}

func (fakeCreator) CreateBGRATexture(width, height int, pixels []byte) (unsafe.Pointer, error) {
	b := make([]byte, 4)
	return unsafe.Pointer(&b[0]), nil
}

type fakeLoadingGate struct{ loading bool }

func (g *fakeLoadingGate) Loading() bool { return g.loading }

type fakeSnapshotter struct{ started int }

func (s *fakeSnapshotter) StartSnapshot() { s.started++ }

func newBindings(t *testing.T, profile Profile, loading *fakeLoadingGate, snap *fakeSnapshotter) (*Bindings, *ShowModsFlag, *ReloadTrigger, *selection.State) {
	dev := newFakeDevice(t)
	registry := modreg.New(fakeResources{}, accountant.New(), nil)
	sel := selection.New(fakeCreator{})
	show := NewShowModsFlag()
	reload := &ReloadTrigger{}
	b := New(profile, registry, dev, sel, show, reload, loading, snap)
	return b, show, reload, sel
}

func TestBothProfilesBindAllSevenCommands(t *testing.T) {
	all := []Command{
		CommandReloadMods, CommandClearMods, CommandToggleShowMods,
		CommandSelectNextTexture, CommandSelectPrevTexture,
		CommandClearTextureLists, CommandTakeSnapshot,
	}
	for _, p := range []Profile{ProfileFunctionKeys, ProfilePunctuation} {
		bound := make(map[Command]bool)
		for _, bd := range bindingsFor(p) {
			bound[bd.cmd] = true
		}
		for _, cmd := range all {
			if !bound[cmd] {
				t.Errorf("profile %v has no binding for command %v", p, cmd)
			}
		}
	}
}

func TestResolveProfile(t *testing.T) {
	cases := map[string]Profile{
		"":        ProfileFunctionKeys,
		"fk":      ProfileFunctionKeys,
		"FK-alt":  ProfileFunctionKeys,
		"punct":   ProfilePunctuation,
		"Punctuation": ProfilePunctuation,
		"garbage": ProfileFunctionKeys,
	}
	for in, want := range cases {
		if got := ResolveProfile(in); got != want {
			t.Errorf("ResolveProfile(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDispatchRequiresModifier(t *testing.T) {
	b, show, _, _ := newBindings(t, ProfileFunctionKeys, nil, nil)
	b.Dispatch(common.KeyF3, false)
	if !show.Show() {
		t.Errorf("expected CommandToggleShowMods to be ignored without the modifier held")
	}
}

func TestDispatchUnboundKeyIsNoOp(t *testing.T) {
	b, show, _, _ := newBindings(t, ProfileFunctionKeys, nil, nil)
	b.Dispatch(9999, true)
	if !show.Show() {
		t.Errorf("expected unbound key to be a no-op")
	}
}

func TestToggleShowMods(t *testing.T) {
	b, show, _, _ := newBindings(t, ProfileFunctionKeys, nil, nil)
	b.Dispatch(common.KeyF3, true)
	if show.Show() {
		t.Errorf("expected show flag to flip false")
	}
	b.Dispatch(common.KeyF3, true)
	if !show.Show() {
		t.Errorf("expected show flag to flip back true")
	}
}

func TestSelectNextPrevAndClearTextureLists(t *testing.T) {
	b, _, _, sel := newBindings(t, ProfileFunctionKeys, nil, nil)
	sel.EnterSelection()
	a := unsafe.Pointer(&struct{ x byte }{})
	bTex := unsafe.Pointer(&struct{ y byte }{})
	sel.ObserveTexture(a)
	sel.ObserveTexture(bTex)

	b.Dispatch(common.KeyF4, true) // select next
	b.Dispatch(common.KeyF5, true) // select prev, back to a

	// Punctuation profile exercises CommandClearTextureLists; switch to it
	// to drive that command through Dispatch as well.
	b2, _, _, sel2 := newBindings(t, ProfilePunctuation, nil, nil)
	sel2.EnterSelection()
	sel2.ObserveTexture(a)
	b2.Dispatch(common.KeyPeriod, true)
	if sel2.MakingSelection() {
		t.Errorf("expected CommandClearTextureLists to exit selection mode")
	}
}

func TestReloadModsSetsTriggerAndClearsRegistry(t *testing.T) {
	b, _, reload, _ := newBindings(t, ProfileFunctionKeys, nil, nil)
	b.Dispatch(common.KeyF1, true)
	if !reload.Pending() {
		t.Errorf("expected reload trigger to be set after CommandReloadMods")
	}
}

func TestReloadModsSkippedWhileLoading(t *testing.T) {
	loading := &fakeLoadingGate{loading: true}
	b, _, reload, _ := newBindings(t, ProfileFunctionKeys, loading, nil)
	b.Dispatch(common.KeyF1, true)
	if reload.Pending() {
		t.Errorf("expected reload to be refused while a load is in progress")
	}
}

func TestClearModsSkippedWhileLoading(t *testing.T) {
	loading := &fakeLoadingGate{loading: true}
	b, _, _, _ := newBindings(t, ProfileFunctionKeys, loading, nil)
	// No observable side effect besides not panicking and registry.Clear
	// being skipped; this just exercises the guard path.
	b.Dispatch(common.KeyF2, true)
}

func TestTakeSnapshotDispatchesToSnapshotter(t *testing.T) {
	snap := &fakeSnapshotter{}
	b, _, _, _ := newBindings(t, ProfileFunctionKeys, nil, snap)
	b.Dispatch(common.KeyF6, true)
	if snap.started != 1 {
		t.Errorf("expected StartSnapshot called once, got %d", snap.started)
	}
}

func TestTakeSnapshotNilSnapshotterIsNoOp(t *testing.T) {
	b, _, _, _ := newBindings(t, ProfileFunctionKeys, nil, nil)
	b.Dispatch(common.KeyF6, true)
}
