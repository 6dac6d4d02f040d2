package debugserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusResponse mirrors StatusSnapshot (spec.md §3) for the debug UI.
type statusResponse struct {
	Revision      uint64         `json:"revision"`
	Layer         uint8          `json:"layer"`
	TypingEnabled bool           `json:"typing_enabled"`
	KeyboardMode  bool           `json:"keyboard_mode"`
	Version       string         `json:"version"`
	Intent        map[string]string `json:"intent"`
	ContactCount  map[string]int    `json:"contact_count"`
	Diagnostics   diagnosticsView   `json:"diagnostics"`
}

type diagnosticsView struct {
	CaptureFrames        uint64            `json:"capture_frames"`
	EngineFrames         uint64            `json:"engine_frames"`
	CaptureFrameOverflow uint64            `json:"capture_frame_overflow"`
	DispatchDepth        uint64            `json:"dispatch_depth"`
	DispatchDropped      uint64            `json:"dispatch_dropped"`
	ReleaseDropped       map[string]uint64 `json:"release_dropped_by_reason"`
}

func (s *Server) handleStatus(c *gin.Context) {
	status, revision := s.eng.Snapshots().Status()

	intents := make(map[string]string, len(status.IntentBySide))
	for side, mode := range status.IntentBySide {
		intents[side.String()] = mode.String()
	}
	counts := make(map[string]int, len(status.ContactCountBySide))
	for side, n := range status.ContactCountBySide {
		counts[side.String()] = n
	}

	c.JSON(http.StatusOK, statusResponse{
		Revision: revision, Layer: status.Layer, TypingEnabled: status.TypingEnabled,
		KeyboardMode: status.KeyboardMode, Version: s.version,
		Intent: intents, ContactCount: counts,
		Diagnostics: diagnosticsView{
			CaptureFrames: status.Diagnostics.CaptureFrames, EngineFrames: status.Diagnostics.EngineFrames,
			CaptureFrameOverflow: status.Diagnostics.CaptureFrameOverflow, DispatchDepth: status.Diagnostics.DispatchDepth,
			DispatchDropped: status.Diagnostics.DispatchDropped, ReleaseDropped: status.Diagnostics.ReleaseDroppedByReason,
		},
	})
}

type contactPointView struct {
	ID   uint32  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type renderSideView struct {
	Contacts            []contactPointView `json:"contacts"`
	HighlightedKey      string             `json:"highlighted_key"`
	HighlightedIsCustom bool               `json:"highlighted_is_custom"`
	Layer               uint8              `json:"layer"`
}

func (s *Server) handleRender(c *gin.Context) {
	render, revision := s.eng.Snapshots().Render()
	out := make(map[string]renderSideView, len(render))
	for side, patch := range render {
		pts := make([]contactPointView, 0, len(patch.Contacts))
		for _, p := range patch.Contacts {
			pts = append(pts, contactPointView{ID: p.ID, X: p.X, Y: p.Y})
		}
		out[side.String()] = renderSideView{
			Contacts: pts, HighlightedKey: patch.HighlightedKey,
			HighlightedIsCustom: patch.HighlightedIsCustom, Layer: patch.Layer,
		}
	}
	c.JSON(http.StatusOK, gin.H{"revision": revision, "sides": out})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.settings.Clone())
}

type presetRequest struct {
	Preset string `json:"preset" binding:"required"`
}

func (s *Server) handleSetPreset(c *gin.Context) {
	var req presetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.settings.SetPreset(req.Preset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"preset": req.Preset})
}

type layerRequest struct {
	Layer uint8 `json:"layer"`
}

func (s *Server) handleSetLayer(c *gin.Context) {
	var req layerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.eng.SetLayer(req.Layer)
	c.JSON(http.StatusOK, gin.H{"layer": req.Layer})
}

type typingRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetTyping(c *gin.Context) {
	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.eng.SetTypingEnabled(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"typing_enabled": req.Enabled})
}
