package modreg

import "unsafe"

// ResourceFactory is the narrow surface this package needs against the
// host's resource-creation API (the generation-9 device, or the
// generation-11 device half of deviceref.Device) to materialize a mod's GPU
// resources. Concrete implementations wrap the real COM calls; this
// interface exists so the loader's control flow can be written and tested
// without a live device, the same separation the reference engine draws
// between loader and loaderBackend.
type ResourceFactory interface {
	// CreateVertexBuffer allocates a managed-pool, write-only vertex
	// buffer sized sizeBytes and returns an owned handle, which a
	// subsequent Lock/fill/Unlock cycle writes through.
	//
	// Parameters:
	//   - sizeBytes: the buffer's size in bytes
	//
	// Returns:
	//   - unsafe.Pointer: the owned buffer handle
	//   - error: error if creation failed
	CreateVertexBuffer(sizeBytes uint32) (unsafe.Pointer, error)

	// LockVertexBuffer maps a vertex buffer's memory for writing and
	// returns a byte slice view of it sized sizeBytes.
	LockVertexBuffer(vb unsafe.Pointer, sizeBytes uint32) ([]byte, error)

	// UnlockVertexBuffer ends a Lock/fill cycle started by
	// LockVertexBuffer, flushing the written bytes to the GPU resource.
	UnlockVertexBuffer(vb unsafe.Pointer) error

	// CreateInputLayout builds a vertex declaration / input layout from
	// declBytes, previously filled by the managed side via
	// Callbacks.FillModData.
	//
	// Parameters:
	//   - declBytes: the raw declaration description
	//   - vertSizeBytes: the per-vertex stride the declaration implies
	//
	// Returns:
	//   - unsafe.Pointer: the owned declaration/layout handle
	//   - error: error if the declaration bytes could not be interpreted
	CreateInputLayout(declBytes []byte, vertSizeBytes uint32) (unsafe.Pointer, error)

	// LoadTexture decodes and uploads the texture at path, returning an
	// owned GPU texture handle.
	LoadTexture(path string) (unsafe.Pointer, error)

	// Release drops this system's reference to a GPU resource handle
	// previously returned by this interface (vertex buffer, declaration,
	// or texture). Releasing a nil handle is a no-op.
	Release(handle unsafe.Pointer)
}
