package core

import (
	"sync/atomic"
	"syscall"
	"testing"
	"unsafe"

	"github.com/brackenfel-labs/modcore/core/deviceref"
	"github.com/brackenfel-labs/modcore/core/modreg"
)

type fakeVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
}

type fakeCOMObject struct {
	vtbl *fakeVtbl
}

// newFakeDevice builds a generation-9 device whose AddRef/Release are real
// stdcall-callable thunks backed by refcount, so purge's Release calls are
// observable the same way S6 describes.
func newFakeDevice(t *testing.T, refcount *uint32) *deviceref.Device {
	t.Helper()
	vtbl := &fakeVtbl{
		AddRef:  syscall.NewCallback(func(this uintptr) uintptr { return uintptr(atomic.AddUint32(refcount, 1)) }),
		Release: syscall.NewCallback(func(this uintptr) uintptr { return uintptr(atomic.AddUint32(refcount, ^uint32(0))) }),
	}
	obj := &fakeCOMObject{vtbl: vtbl}
	return deviceref.NewGeneration9(unsafe.Pointer(obj))
}

type fakeResources struct {
	dev *deviceref.Device
}

func (f *fakeResources) CreateVertexBuffer(sizeBytes uint32) (unsafe.Pointer, error) {
	b := make([]byte, sizeBytes)
	f.dev.AddRef()
	return unsafe.Pointer(&b[0]), nil
}
func (f *fakeResources) LockVertexBuffer(vb unsafe.Pointer, sizeBytes uint32) ([]byte, error) {
	return unsafe.Slice((*byte)(vb), sizeBytes), nil
}
func (f *fakeResources) UnlockVertexBuffer(vb unsafe.Pointer) error { return nil }
func (f *fakeResources) CreateInputLayout(declBytes []byte, vertSizeBytes uint32) (unsafe.Pointer, error) {
	b := make([]byte, 8)
	f.dev.AddRef()
	return unsafe.Pointer(&b[0]), nil
}
func (f *fakeResources) LoadTexture(path string) (unsafe.Pointer, error) {
	b := make([]byte, 4)
	f.dev.AddRef()
	return unsafe.Pointer(&b[0]), nil
}
func (f *fakeResources) Release(handle unsafe.Pointer) {
	if handle == nil {
		return
	}
	f.dev.Release()
}

type fakeCallbacks struct{}

func (fakeCallbacks) ModCount() int32                                     { return 0 }
func (fakeCallbacks) ModData(i int32) (modreg.ModData, error)             { return modreg.ModData{}, nil }
func (fakeCallbacks) FillModData(i int32, declBuf, vbBuf []byte) error    { return nil }
func (fakeCallbacks) LoadingState() modreg.LoadingState                  { return modreg.LoadingNotStarted }
func (fakeCallbacks) LoadModDB() modreg.LoadingState                     { return modreg.LoadingComplete }
func (fakeCallbacks) TakeSnapshot(device unsafe.Pointer, req modreg.SnapshotRequest) error {
	return nil
}
func (fakeCallbacks) GetSnapshotResult() (modreg.SnapshotResult, error) { return modreg.SnapshotResult{}, nil }

type fakeBackend struct {
	resources [4]unsafe.Pointer
}

func (b *fakeBackend) GetInputLayout() unsafe.Pointer          { return nil }
func (b *fakeBackend) SetInputLayout(p unsafe.Pointer)         {}
func (b *fakeBackend) GetVertexBuffer(slot uint32) (unsafe.Pointer, uint32, uint32) {
	return nil, 0, 0
}
func (b *fakeBackend) SetVertexBuffer(slot uint32, buf unsafe.Pointer, stride, offset uint32) {}
func (b *fakeBackend) GetIndexBuffer() unsafe.Pointer                          { return nil }
func (b *fakeBackend) SetIndexBuffer(p unsafe.Pointer)                         {}
func (b *fakeBackend) GetShaderResource(stage int) unsafe.Pointer              { return b.resources[stage] }
func (b *fakeBackend) SetShaderResource(stage int, tex unsafe.Pointer)         { b.resources[stage] = tex }
func (b *fakeBackend) DrawPrimitives(vertexCount uint32)                      {}

type fakeCreator struct{}

func (fakeCreator) CreateBGRATexture(width, height int, pixels []byte) (unsafe.Pointer, error) {
	b := make([]byte, 4)
	return unsafe.Pointer(&b[0]), nil
}

type fakeSnapshotter struct{}

func (fakeSnapshotter) TakeSnapshot(device unsafe.Pointer, primCount, vertCount uint32) error {
	return nil
}

func newTestCore(t *testing.T, refcount *uint32) (*Core, *deviceref.Device, *fakeResources) {
	dev := newFakeDevice(t, refcount)
	resources := &fakeResources{dev: dev}
	c := New(dev, nil, fakeCallbacks{}, resources, &fakeBackend{}, fakeCreator{}, fakeSnapshotter{})
	return c, dev, resources
}

func TestNewWiresAllComponents(t *testing.T) {
	var rc uint32 = 1
	c, _, _ := newTestCore(t, &rc)

	if c.acct == nil || c.registry == nil || c.sel == nil || c.ic == nil || c.input == nil {
		t.Fatalf("expected every core component to be wired, got %+v", c)
	}
	if c.shadow != nil {
		t.Errorf("expected nil shadow state for a generation-9 device")
	}
}

func TestDispatchReachesUnderlyingBindings(t *testing.T) {
	var rc uint32 = 1
	c, _, _ := newTestCore(t, &rc)
	c.Dispatch(9999, true) // unbound key, must not panic
}

func TestOnHostReleaseBelowThresholdDoesNotPurge(t *testing.T) {
	var rc uint32 = 1
	c, _, _ := newTestCore(t, &rc)
	if c.OnHostRelease(5) {
		t.Errorf("expected no purge when postRC is far from the tracked count")
	}
}

func TestOnHostReleasePurgesAndZeroesAccountant(t *testing.T) {
	var rc uint32 = 1
	c, dev, _ := newTestCore(t, &rc)
	loadedCallbacksFor(c, dev)

	if c.acct.Count() == 0 {
		t.Fatalf("expected accountant to be tracking loaded resources before purge")
	}

	tracked := c.acct.Count()
	if !c.OnHostRelease(tracked + 1) {
		t.Fatalf("expected purge once postRC == tracked+1")
	}
	if got := c.acct.Count(); got != 0 {
		t.Errorf("Count() after purge = %d, want 0", got)
	}
}

// loadedCallbacksFor drives a real mod load through the registry so the
// accountant has something nonzero to purge in
// TestOnHostReleasePurgesAndZeroesAccountant.
func loadedCallbacksFor(c *Core, dev *deviceref.Device) modreg.Callbacks {
	cb := &loadedCallbacks{mods: []modreg.ModData{
		{Name: "a", Numbers: modreg.ModNumbers{
			ModType: int32(modreg.GPUReplacement), PrimCount: 10,
			RefPrimCount: 60, RefVertCount: 120, VertSizeBytes: 32, DeclSizeBytes: 32,
		}},
	}}
	_ = c.registry.Load(dev, cb)
	return cb
}

type loadedCallbacks struct {
	mods []modreg.ModData
}

func (c *loadedCallbacks) ModCount() int32 { return int32(len(c.mods)) }
func (c *loadedCallbacks) ModData(i int32) (modreg.ModData, error) { return c.mods[i], nil }
func (c *loadedCallbacks) FillModData(i int32, declBuf, vbBuf []byte) error { return nil }
func (c *loadedCallbacks) LoadingState() modreg.LoadingState { return modreg.LoadingNotStarted }
func (c *loadedCallbacks) LoadModDB() modreg.LoadingState { return modreg.LoadingComplete }
func (c *loadedCallbacks) TakeSnapshot(device unsafe.Pointer, req modreg.SnapshotRequest) error {
	return nil
}
func (c *loadedCallbacks) GetSnapshotResult() (modreg.SnapshotResult, error) {
	return modreg.SnapshotResult{}, nil
}
