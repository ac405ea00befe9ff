package modreg

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/brackenfel-labs/modcore/core/accountant"
	"github.com/brackenfel-labs/modcore/core/deviceref"
)

// ModKey is a stable injection of a (refVerts,refPrims) mesh signature into
// a single uint32. Collisions are acceptable — a bucket always holds every
// mod that hashed to it and is re-checked by name/signature on lookup.
func ModKey(refVerts, refPrims uint32) uint32 {
	return refVerts*2654435761 ^ refPrims
}

// snapshot is an immutable view of the registry's contents. The hot path
// reads a snapshot without ever taking a lock; writers build a new one and
// swap it in atomically.
type snapshot struct {
	byKey  map[uint32][]*NativeMod
	byName map[string]uint32 // lowercased name -> key
}

func emptySnapshot() *snapshot {
	return &snapshot{byKey: make(map[uint32][]*NativeMod), byName: make(map[string]uint32)}
}

// Registry is the mod index. Reads (Lookup) never block. Writes (Load,
// Clear) serialize on mu and build a new snapshot locally before publishing
// it.
type Registry struct {
	mu        sync.Mutex
	snap      atomic.Pointer[snapshot]
	recent    sync.Map // *NativeMod -> uint64, side table for last_frame_rendered
	resources ResourceFactory
	acct      *accountant.Accountant
	logger    *log.Logger
}

// New constructs an empty Registry. resources performs the GPU-side work a
// Load needs; acct tracks the device refcount a Load/Clear cycle nets out.
func New(resources ResourceFactory, acct *accountant.Accountant, logger *log.Logger) *Registry {
	r := &Registry{resources: resources, acct: acct, logger: logger}
	r.snap.Store(emptySnapshot())
	return r
}

// Lookup returns the bucket of mods sharing the given mesh signature, or nil
// if none match. The returned slice must not be mutated; it may be shared
// with the live snapshot.
func (r *Registry) Lookup(refVerts, refPrims uint32) []*NativeMod {
	s := r.snap.Load()
	bucket := s.byKey[ModKey(refVerts, refPrims)]
	for i, m := range bucket {
		if m.RefVerts != refVerts || m.RefPrims != refPrims {
			// Key collision: copy out only the mods with this exact signature.
			matched := append([]*NativeMod(nil), bucket[:i]...)
			for _, o := range bucket[i+1:] {
				if o.RefVerts == refVerts && o.RefPrims == refPrims {
					matched = append(matched, o)
				}
			}
			return matched
		}
	}
	return bucket
}

// RecentlyRendered reports whether any mod in bucket was rendered within the
// last window frames (inclusive of the current frame), per the per-generation
// recency window decided in DESIGN.md.
func (r *Registry) RecentlyRendered(bucket []*NativeMod, totalFrames uint64, window uint64) bool {
	for _, m := range bucket {
		last, ok := r.recent.Load(m)
		if !ok {
			continue
		}
		lf := last.(uint64)
		if totalFrames >= lf && totalFrames-lf < window {
			return true
		}
	}
	return false
}

// MarkRendered stamps mod as rendered at totalFrames, via the side table
// rather than mutating the published snapshot in place.
func (r *Registry) MarkRendered(m *NativeMod, totalFrames uint64) {
	r.recent.Store(m, totalFrames)
}

// parentBucket resolves a mod's parent name to the parent's own bucket, or
// nil if the name is empty or unresolvable.
func (s *snapshot) parentBucket(parentName string) []*NativeMod {
	if parentName == "" {
		return nil
	}
	key, ok := s.byName[parentName]
	if !ok {
		return nil
	}
	return s.byKey[key]
}

// Select runs the parent-arbitration algorithm over a candidate bucket (as
// returned by Lookup) and reports the winning mod, if any.
func (r *Registry) Select(bucket []*NativeMod, totalFrames uint64, window uint64) (*NativeMod, bool) {
	if len(bucket) == 0 {
		return nil, false
	}
	s := r.snap.Load()

	// countRecent counts the mods in a parent bucket rendered within window.
	countRecent := func(pb []*NativeMod) int {
		n := 0
		for i := range pb {
			if r.RecentlyRendered(pb[i:i+1], totalFrames, window) {
				n++
			}
		}
		return n
	}

	if len(bucket) == 1 {
		m := bucket[0]
		if m.ParentName == "" {
			return m, true
		}
		if countRecent(s.parentBucket(m.ParentName)) == 1 {
			return m, true
		}
		return nil, false
	}

	// Multi-candidate bucket: every candidate must declare a parent, and
	// exactly one mod across all candidates' parent buckets may be recently
	// rendered.
	var winner *NativeMod
	recentCount := 0
	for _, m := range bucket {
		if m.ParentName == "" {
			return nil, false
		}
		if n := countRecent(s.parentBucket(m.ParentName)); n > 0 {
			recentCount += n
			winner = m
		}
	}
	if recentCount != 1 {
		return nil, false
	}
	return winner, true
}

// Load replaces the registry's contents with the mod database the managed
// side currently exposes. Any previously loaded mods are cleared first. The
// accountant's Count() reflects the net resources this call added.
func (r *Registry) Load(dev *deviceref.Device, cb Callbacks) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearLocked(dev)

	count := cb.ModCount()
	if count <= 0 {
		return nil
	}

	next := emptySnapshot()

	delta := accountant.DeltaAround(dev, func() {
		// First pass: build every mod record and its GPU resources.
		for i := int32(0); i < count; i++ {
			data, err := cb.ModData(i)
			if err != nil {
				r.logf("modreg: mod %d: fetch failed: %v", i, err)
				continue
			}

			name := strings.ToLower(strings.TrimSpace(data.Name))
			parent := strings.ToLower(strings.TrimSpace(data.ParentName))
			kind := Kind(data.Numbers.ModType)

			key := ModKey(data.Numbers.RefVertCount, data.Numbers.RefPrimCount)

			if kind == Deletion {
				m := &NativeMod{Name: name, ParentName: parent, Kind: Deletion,
					RefVerts: data.Numbers.RefVertCount, RefPrims: data.Numbers.RefPrimCount}
				next.byKey[key] = append(next.byKey[key], m)
				if name != "" {
					if _, exists := next.byName[name]; !exists {
						next.byName[name] = key
					} else {
						r.logf("modreg: duplicate mod name %q ignored for parent lookup", name)
					}
				}
				continue
			}

			m, err := r.buildReplacement(cb, i, data, kind)
			if err != nil {
				r.logf("modreg: mod %d (%q): skipped: %v", i, name, err)
				continue
			}
			m.Name = name
			m.ParentName = parent

			next.byKey[key] = append(next.byKey[key], m)
			if name != "" {
				if _, exists := next.byName[name]; !exists {
					next.byName[name] = key
				} else {
					r.logf("modreg: duplicate mod name %q ignored for parent lookup", name)
				}
			}
		}

		// Second pass: mark parents.
		for _, bucket := range next.byKey {
			for _, m := range bucket {
				if m.ParentName == "" {
					continue
				}
				pKey, ok := next.byName[m.ParentName]
				if !ok {
					r.logf("modreg: mod %q: parent %q not found", m.Name, m.ParentName)
					continue
				}
				for _, p := range next.byKey[pKey] {
					if p.Name == m.ParentName {
						p.IsParent = true
					}
				}
			}
		}

		// Validation pass: ambiguous buckets are logged, not rejected.
		for key, bucket := range next.byKey {
			if len(bucket) <= 1 {
				continue
			}
			seen := make(map[string]bool, len(bucket))
			for _, m := range bucket {
				if m.ParentName == "" || seen[m.ParentName] {
					r.logf("modreg: ambiguous bucket %d: parents not all distinct/non-empty", key)
					break
				}
				seen[m.ParentName] = true
			}
		}
	})

	r.acct.Add(delta)
	r.snap.Store(next)
	return nil
}

// buildReplacement materializes one non-deletion mod's GPU resources:
// declaration buffer, vertex buffer, and up to four textures.
func (r *Registry) buildReplacement(cb Callbacks, i int32, data ModData, kind Kind) (*NativeMod, error) {
	n := data.Numbers

	declBuf := make([]byte, n.DeclSizeBytes)
	vbSize := n.PrimCount * 3 * n.VertSizeBytes

	vb, err := r.resources.CreateVertexBuffer(vbSize)
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}

	vbBytes, err := r.resources.LockVertexBuffer(vb, vbSize)
	if err != nil {
		r.resources.Release(vb)
		return nil, fmt.Errorf("lock vertex buffer: %w", err)
	}
	if err := cb.FillModData(i, declBuf, vbBytes); err != nil {
		r.resources.UnlockVertexBuffer(vb)
		r.resources.Release(vb)
		return nil, fmt.Errorf("fill mod data: %w", err)
	}
	if err := r.resources.UnlockVertexBuffer(vb); err != nil {
		r.resources.Release(vb)
		return nil, fmt.Errorf("unlock vertex buffer: %w", err)
	}

	decl, err := r.resources.CreateInputLayout(declBuf, n.VertSizeBytes)
	if err != nil {
		r.resources.Release(vb)
		return nil, fmt.Errorf("create input layout: %w", err)
	}

	m := &NativeMod{
		Kind:          kind,
		RefVerts:      n.RefVertCount,
		RefPrims:      n.RefPrimCount,
		PrimCount:     n.PrimCount,
		VertCount:     n.VertCount,
		VertSizeBytes: n.VertSizeBytes,
		VB:            vb,
		Decl:          decl,
		state:         stateLoaded,
	}

	for ti, path := range data.TexPaths {
		if path == "" {
			continue
		}
		tex, err := r.resources.LoadTexture(path)
		if err != nil {
			r.logf("modreg: mod %d: texture %d (%q): load failed, leaving slot empty: %v", i, ti, path, err)
			continue
		}
		m.Textures[ti] = tex
	}

	return m, nil
}

// Clear releases every mod's GPU resources and empties the registry.
func (r *Registry) Clear(dev *deviceref.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked(dev)
}

func (r *Registry) clearLocked(dev *deviceref.Device) {
	cur := r.snap.Load()
	if len(cur.byKey) == 0 {
		return
	}

	delta := accountant.DeltaAround(dev, func() {
		for _, bucket := range cur.byKey {
			for _, m := range bucket {
				r.resources.Release(m.VB)
				r.resources.Release(m.Decl)
				for _, t := range m.Textures {
					r.resources.Release(t)
				}
			}
		}
	})

	r.acct.Subtract(-delta) // clear's delta is negative (refcount dropped); Subtract wants a positive magnitude
	r.snap.Store(emptySnapshot())
	r.recent = sync.Map{}
}

func (r *Registry) logf(format string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
