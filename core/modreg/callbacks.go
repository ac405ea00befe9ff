package modreg

import "unsafe"

// SnapshotRequest is the fixed-layout descriptor passed to
// Callbacks.TakeSnapshot, describing the draw being captured.
type SnapshotRequest struct {
	DeclBytes  []byte
	IndexBytes []byte
	PrimCount  uint32
	VertCount  uint32
}

// SnapshotResult is what the managed side reports back after a snapshot
// completes, naming where it wrote the capture.
type SnapshotResult struct {
	Directory string
	Prefix    string
}

// Callbacks is the managed side's contract with this core. Every method
// here crosses into code outside this system; this core only ever calls
// through the interface, never implements it.
type Callbacks interface {
	// ModCount returns how many mod records the managed side currently
	// holds, or a negative value if the database has not been built yet.
	ModCount() int32

	// ModData returns the i'th mod record's description.
	//
	// Parameters:
	//   - i: the mod index, 0 <= i < ModCount()
	//
	// Returns:
	//   - ModData: the mod's name, parent, numbers, and texture paths
	//   - error: error if the index is out of range or the managed side
	//     failed to produce a record
	ModData(i int32) (ModData, error)

	// FillModData asks the managed side to write the i'th mod's vertex
	// declaration and vertex buffer contents into caller-owned, already
	// GPU-mapped memory. Index buffers are unsupported in this core, so
	// the method takes no index-buffer destination: replacement meshes are
	// never index-buffer-sourced.
	//
	// Parameters:
	//   - i: the mod index
	//   - declBuf: destination for the vertex declaration bytes
	//   - vbBuf: destination for the vertex buffer bytes
	//
	// Returns:
	//   - error: error if the managed side could not fill the buffers
	FillModData(i int32, declBuf []byte, vbBuf []byte) error

	// LoadingState reports the managed side's current mod-database
	// loading state.
	LoadingState() LoadingState

	// LoadModDB kicks off (or reports progress of) a mod-database load and
	// returns the resulting state.
	LoadModDB() LoadingState

	// TakeSnapshot asks the managed side to capture geometry, textures,
	// and shader/constant state associated with the current draw to disk.
	//
	// Parameters:
	//   - device: the resource-factory pointer for the active device
	//   - req: the draw's geometry description
	//
	// Returns:
	//   - error: error if the snapshot could not be captured
	TakeSnapshot(device unsafe.Pointer, req SnapshotRequest) error

	// GetSnapshotResult returns the directory and file prefix the most
	// recent TakeSnapshot call wrote to.
	GetSnapshotResult() (SnapshotResult, error)
}
