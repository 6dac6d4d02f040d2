package engine

import (
	"sync"

	"github.com/glasstokey/glasstokey/internal/core"
	"github.com/glasstokey/glasstokey/internal/frame"
)

// SnapshotService publishes the Engine Actor's render/status view for lock-protected,
// bounded-time reads from other goroutines (the debug HTTP server, the tray, the replay
// harness) — spec.md §4.9 C9. Every publish bumps a monotonic revision so a reader can detect
// whether it observed a stale snapshot between two reads.
type SnapshotService struct {
	mu       sync.RWMutex
	revision uint64
	render   map[frame.Side]core.RenderPatch
	status   core.StatusPatch
}

// NewSnapshotService returns an empty snapshot service at revision 0.
func NewSnapshotService() *SnapshotService {
	return &SnapshotService{render: make(map[frame.Side]core.RenderPatch)}
}

// Publish records a new render patch for one side plus the current full status view,
// atomically bumping the revision. Only the Engine Actor goroutine calls this.
func (s *SnapshotService) Publish(render core.RenderPatch, status core.StatusPatch) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	s.render[render.Side] = render
	s.status = status
	return s.revision
}

// Render returns the current per-side render patches and the revision they were observed at.
func (s *SnapshotService) Render() (map[frame.Side]core.RenderPatch, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[frame.Side]core.RenderPatch, len(s.render))
	for k, v := range s.render {
		cp[k] = v
	}
	return cp, s.revision
}

// Status returns the current status view and the revision it was observed at.
func (s *SnapshotService) Status() (core.StatusPatch, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.revision
}
