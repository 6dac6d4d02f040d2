// Package keymap models the layout preset → normalized key geometry and the layered
// mapping table of primary/hold actions (spec.md §4.2, C2).
package keymap

import (
	"fmt"
	"math"
)

// Key is a normalized rectangle on one trackpad side. x, y, w, h are all in [0, 1];
// rotation_deg is in (-180, 180].
type Key struct {
	X, Y, W, H  float64
	RotationDeg float64
}

// HitGeometry precomputes everything the Binding Index needs to test a point against a Key
// without re-deriving trigonometry on every query (spec.md §3 Key, §4.3).
type HitGeometry struct {
	CenterX, CenterY   float64
	HalfW, HalfH       float64
	Cos, Sin           float64
	MinX, MinY         float64 // axis-aligned bounding box
	MaxX, MaxY         float64
	Area               float64
}

// Geometry derives the HitGeometry for a Key. Area is monotonic under rotation (rotating a
// rectangle never changes its area), so it is computed directly from W*H.
func (k Key) Geometry() HitGeometry {
	cx := k.X + k.W/2
	cy := k.Y + k.H/2
	halfW := k.W / 2
	halfH := k.H / 2
	rad := k.RotationDeg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	// Axis-aligned bounding box of the rotated rectangle.
	extentX := halfW*math.Abs(cos) + halfH*math.Abs(sin)
	extentY := halfW*math.Abs(sin) + halfH*math.Abs(cos)

	return HitGeometry{
		CenterX: cx, CenterY: cy,
		HalfW: halfW, HalfH: halfH,
		Cos: cos, Sin: sin,
		MinX: cx - extentX, MinY: cy - extentY,
		MaxX: cx + extentX, MaxY: cy + extentY,
		Area: k.W * k.H,
	}
}

// Contains reports whether the normalized point (x, y) falls inside the rotated rectangle,
// and returns the signed edge distance in the key's local (unrotated) frame: positive means
// inside, by that many normalized units from the nearest edge; negative means outside.
func (g HitGeometry) Contains(x, y float64) (inside bool, edgeDistance float64) {
	// Rotate the point into the key's local frame around its center.
	dx, dy := x-g.CenterX, y-g.CenterY
	lx := dx*g.Cos + dy*g.Sin
	ly := -dx*g.Sin + dy*g.Cos

	insideX := g.HalfW - math.Abs(lx)
	insideY := g.HalfH - math.Abs(ly)
	edgeDistance = math.Min(insideX, insideY)
	return edgeDistance >= 0, edgeDistance
}

// padAspect is the physical pad's height-to-width ratio (spec.md §4.2: 160.0mm by 114.9mm).
// A normalized x and y of equal magnitude do not span equal physical distance on the pad, so
// CenterDistance rescales dy by this ratio before combining axes — otherwise snap-tie-breaking
// would favor the wrong neighbor on a non-square pad.
const padAspect = padHeightMM / padWidthMM

// CenterDistance returns the physical-equivalent distance from (x, y) to the key's center, in
// units of normalized pad width, used for snap tie-breaking (spec.md §4.3 policy 4).
func (g HitGeometry) CenterDistance(x, y float64) float64 {
	dx, dy := x-g.CenterX, (y-g.CenterY)*padAspect
	return math.Sqrt(dx*dx + dy*dy)
}

// SemanticAction is the platform-neutral payload carried by every KeyAction. The external
// dispatch sink maps these onto platform scancodes/events (spec.md §9).
type SemanticAction int

const (
	ActionNone SemanticAction = iota
	ActionLetter
	ActionDigit
	ActionModifier
	ActionNavigation
	ActionFunction
	ActionBrightness
	ActionMouseButton
	ActionChord
	ActionLayerToggle
	ActionTypingToggle
	ActionHapticTrigger
	ActionForceClick
)

func (a SemanticAction) String() string {
	switch a {
	case ActionLetter:
		return "letter"
	case ActionDigit:
		return "digit"
	case ActionModifier:
		return "modifier"
	case ActionNavigation:
		return "navigation"
	case ActionFunction:
		return "function"
	case ActionBrightness:
		return "brightness"
	case ActionMouseButton:
		return "mouse_button"
	case ActionChord:
		return "chord"
	case ActionLayerToggle:
		return "layer_toggle"
	case ActionTypingToggle:
		return "typing_toggle"
	case ActionHapticTrigger:
		return "haptic_trigger"
	case ActionForceClick:
		return "force_click"
	default:
		return "none"
	}
}

// KeyAction is the effective action a storage key or custom button resolves to.
// Payload carries the action-specific value: the letter/digit itself, the modifier name,
// the navigation direction, the mouse button id, the chord's member keys (joined by "+"),
// or the layer index (as a decimal string) for ActionLayerToggle.
type KeyAction struct {
	Label    string
	Semantic SemanticAction
	Payload  string
}

func (a KeyAction) String() string {
	if a.Payload == "" {
		return fmt.Sprintf("%s(%s)", a.Semantic, a.Label)
	}
	return fmt.Sprintf("%s(%s=%s)", a.Semantic, a.Label, a.Payload)
}

// IsZero reports whether a is the unset action.
func (a KeyAction) IsZero() bool { return a.Semantic == ActionNone && a.Label == "" }

// KeyMapping is the effective primary/hold pair for one storage key or custom button.
type KeyMapping struct {
	Primary KeyAction
	Hold    *KeyAction
}

// ClampRect enforces the minimum custom-button size and [0,1] containment
// (spec.md §4.2 clamp_custom_rect).
func ClampRect(r Key) Key {
	const minSize = 0.05

	if r.W < minSize {
		r.W = minSize
	}
	if r.H < minSize {
		r.H = minSize
	}
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	if r.X+r.W > 1 {
		r.X = 1 - r.W
	}
	if r.Y+r.H > 1 {
		r.Y = 1 - r.H
	}
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	return r
}
