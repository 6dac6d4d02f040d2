package keymap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/glasstokey/glasstokey/internal/frame"
)

// MaxLayer is the highest valid layer index (spec.md §3 Keymap invariants: layer ∈ [0,7]).
const MaxLayer = 7

// CustomButton is a user-editable region overriding the static grid for one layer.
type CustomButton struct {
	ID      string
	Side    frame.Side
	Rect    Key
	Primary KeyAction
	Hold    *KeyAction
	Layer   uint8
}

// wireKeyAction/wireMapping/wireCustomButton/wireLayoutBlock/wireKeymap mirror the JSON shape
// described in spec.md §4.2: {version, layouts: {preset -> {mappings: {layer -> {storage_key
// -> {primary, hold?}}}, custom_buttons: {layer -> [CustomButton]}}}}.
type wireKeyAction struct {
	Label    string `json:"label"`
	Semantic string `json:"semantic"`
	Payload  string `json:"payload,omitempty"`
}

type wireMapping struct {
	Primary wireKeyAction  `json:"primary"`
	Hold    *wireKeyAction `json:"hold,omitempty"`
}

type wireCustomButton struct {
	ID      string        `json:"id"`
	Side    string        `json:"side"`
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	W       float64       `json:"w"`
	H       float64       `json:"h"`
	Primary wireKeyAction  `json:"primary"`
	Hold    *wireKeyAction `json:"hold,omitempty"`
}

type wireLayoutBlock struct {
	Mappings      map[string]map[string]wireMapping `json:"mappings"`
	CustomButtons map[string][]wireCustomButton      `json:"custom_buttons"`
}

type wireKeymap struct {
	Version int                        `json:"version"`
	Layouts map[string]wireLayoutBlock `json:"layouts"`
	// Unknown carries any top-level field this version of the reader doesn't recognize, so
	// Save can round-trip it (spec.md §4.2 persistence contract).
	Unknown map[string]json.RawMessage `json:"-"`
}

// Keymap is the engine-owned, atomically-replaced layered dictionary described in spec.md §3.
type Keymap struct {
	Version int
	// Layouts[preset][layer][storageKey] = mapping
	Layouts map[string]map[uint8]map[string]KeyMapping
	// CustomButtons[preset][layer] = buttons for that layer, insertion order preserved.
	CustomButtons map[string]map[uint8][]CustomButton
	unknown       map[string]json.RawMessage
}

func semanticFromString(s string) SemanticAction {
	switch s {
	case "letter":
		return ActionLetter
	case "digit":
		return ActionDigit
	case "modifier":
		return ActionModifier
	case "navigation":
		return ActionNavigation
	case "function":
		return ActionFunction
	case "brightness":
		return ActionBrightness
	case "mouse_button":
		return ActionMouseButton
	case "chord":
		return ActionChord
	case "layer_toggle":
		return ActionLayerToggle
	case "typing_toggle":
		return ActionTypingToggle
	case "haptic_trigger":
		return ActionHapticTrigger
	case "force_click":
		return ActionForceClick
	default:
		return ActionNone
	}
}

func fromWireAction(w wireKeyAction) KeyAction {
	return KeyAction{Label: w.Label, Semantic: semanticFromString(w.Semantic), Payload: w.Payload}
}

func toWireAction(a KeyAction) wireKeyAction {
	return wireKeyAction{Label: a.Label, Semantic: a.Semantic.String(), Payload: a.Payload}
}

func sideFromString(s string) frame.Side {
	switch s {
	case "left":
		return frame.SideLeft
	case "right":
		return frame.SideRight
	default:
		return frame.SideUnknown
	}
}

// caseInsensitiveKey returns the actual key in raw that equals name under ASCII
// case-folding, mirroring how encoding/json itself matches JSON object keys to struct
// field names (spec.md §4.2: decoding is case-insensitive on top-level field names).
func caseInsensitiveKey(raw map[string]json.RawMessage, name string) (string, bool) {
	for k := range raw {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// Load parses a keymap JSON document (spec.md §4.2 load). Legacy files missing the "layouts"
// wrapper are upgraded in place by treating the top-level mapping as layouts["6x3"].
func Load(data []byte) (*Keymap, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("keymap: invalid JSON: %w", err)
	}

	layoutsKey, hasLayouts := caseInsensitiveKey(raw, "layouts")
	if !hasLayouts {
		return loadLegacy(raw)
	}

	var w wireKeymap
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("keymap: decode: %w", err)
	}

	versionKey, hasVersion := caseInsensitiveKey(raw, "version")
	known := map[string]bool{layoutsKey: true}
	if hasVersion {
		known[versionKey] = true
	}
	unknown := make(map[string]json.RawMessage)
	for k, v := range raw {
		if !known[k] {
			unknown[k] = v
		}
	}

	return buildKeymap(w, unknown)
}

// loadLegacy upgrades a pre-layouts-wrapper document (a bare {layer -> {storage_key ->
// mapping}} map at the top level) into layouts["6x3"] (spec.md §9 open question 4).
func loadLegacy(raw map[string]json.RawMessage) (*Keymap, error) {
	mappings := make(map[string]map[string]wireMapping)
	unknown := make(map[string]json.RawMessage)
	for k, v := range raw {
		var layerMap map[string]wireMapping
		if err := json.Unmarshal(v, &layerMap); err != nil {
			unknown[k] = v
			continue
		}
		mappings[k] = layerMap
	}

	w := wireKeymap{
		Version: 1,
		Layouts: map[string]wireLayoutBlock{
			"6x3": {Mappings: mappings},
		},
	}
	return buildKeymap(w, unknown)
}

func buildKeymap(w wireKeymap, unknown map[string]json.RawMessage) (*Keymap, error) {
	km := &Keymap{
		Version:       w.Version,
		Layouts:       make(map[string]map[uint8]map[string]KeyMapping),
		CustomButtons: make(map[string]map[uint8][]CustomButton),
		unknown:       unknown,
	}

	for preset, block := range w.Layouts {
		layerMappings := make(map[uint8]map[string]KeyMapping)
		for layerStr, sks := range block.Mappings {
			layer, err := parseLayer(layerStr)
			if err != nil {
				return nil, fmt.Errorf("keymap: preset %q: %w", preset, err)
			}
			skMap := make(map[string]KeyMapping, len(sks))
			for sk, m := range sks {
				var hold *KeyAction
				if m.Hold != nil {
					h := fromWireAction(*m.Hold)
					hold = &h
				}
				skMap[sk] = KeyMapping{Primary: fromWireAction(m.Primary), Hold: hold}
			}
			layerMappings[layer] = skMap
		}
		km.Layouts[preset] = layerMappings

		layerButtons := make(map[uint8][]CustomButton)
		for layerStr, btns := range block.CustomButtons {
			layer, err := parseLayer(layerStr)
			if err != nil {
				return nil, fmt.Errorf("keymap: preset %q custom buttons: %w", preset, err)
			}
			out := make([]CustomButton, 0, len(btns))
			for _, b := range btns {
				var hold *KeyAction
				if b.Hold != nil {
					h := fromWireAction(*b.Hold)
					hold = &h
				}
				rect := ClampRect(Key{X: b.X, Y: b.Y, W: b.W, H: b.H})
				out = append(out, CustomButton{
					ID: b.ID, Side: sideFromString(b.Side), Rect: rect,
					Primary: fromWireAction(b.Primary), Hold: hold, Layer: layer,
				})
			}
			layerButtons[layer] = out
		}
		km.CustomButtons[preset] = layerButtons
	}

	return km, nil
}

func parseLayer(s string) (uint8, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid layer %q: %w", s, err)
	}
	if n < 0 || n > MaxLayer {
		return 0, fmt.Errorf("layer %d out of range [0,%d]", n, MaxLayer)
	}
	return uint8(n), nil
}

// Encode serializes the keymap back to JSON with sorted keys (the wire structs are round-tripped
// through generic maps, whose keys encoding/json sorts), preserving any unknown top-level
// fields from the source document.
func (km *Keymap) Encode() ([]byte, error) {
	w := wireKeymap{Version: km.Version, Layouts: make(map[string]wireLayoutBlock)}
	for preset, layers := range km.Layouts {
		block := wireLayoutBlock{Mappings: make(map[string]map[string]wireMapping)}
		for layer, sks := range layers {
			skMap := make(map[string]wireMapping, len(sks))
			for sk, m := range sks {
				var hold *wireKeyAction
				if m.Hold != nil {
					h := toWireAction(*m.Hold)
					hold = &h
				}
				skMap[sk] = wireMapping{Primary: toWireAction(m.Primary), Hold: hold}
			}
			block.Mappings[fmt.Sprintf("%d", layer)] = skMap
		}
		if buttons, ok := km.CustomButtons[preset]; ok {
			block.CustomButtons = make(map[string][]wireCustomButton)
			for layer, btns := range buttons {
				out := make([]wireCustomButton, 0, len(btns))
				for _, b := range btns {
					var hold *wireKeyAction
					if b.Hold != nil {
						h := toWireAction(*b.Hold)
						hold = &h
					}
					out = append(out, wireCustomButton{
						ID: b.ID, Side: b.Side.String(),
						X: b.Rect.X, Y: b.Rect.Y, W: b.Rect.W, H: b.Rect.H,
						Primary: toWireAction(b.Primary), Hold: hold,
					})
				}
				block.CustomButtons[fmt.Sprintf("%d", layer)] = out
			}
		}
		w.Layouts[preset] = block
	}

	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("keymap: encode: %w", err)
	}
	// Struct fields marshal in declaration order; decoding into generic maps and encoding again
	// sorts the keys of every object.
	var merged map[string]interface{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	if len(km.unknown) == 0 {
		return json.Marshal(merged)
	}
	for k, v := range km.unknown {
		merged[k] = v
	}
	return json.MarshalIndent(merged, "", "  ")
}

// Resolve returns the effective mapping for (preset, layer, storageKey), substituting
// defaultLabel when no user override exists (spec.md §4.2 resolve).
func (km *Keymap) Resolve(preset string, layer uint8, storageKey, defaultLabel string) KeyMapping {
	if layers, ok := km.Layouts[preset]; ok {
		if sks, ok := layers[layer]; ok {
			if m, ok := sks[storageKey]; ok {
				return m
			}
		}
	}
	return KeyMapping{Primary: KeyAction{Label: defaultLabel, Semantic: ActionLetter, Payload: defaultLabel}}
}

// CustomButtonsFor returns the custom buttons active for (preset, layer), in insertion order
// (spec.md §4.3 policy 1: first containing rect wins, scanned in this order).
func (km *Keymap) CustomButtonsFor(preset string, layer uint8) []CustomButton {
	if byLayer, ok := km.CustomButtons[preset]; ok {
		return byLayer[layer]
	}
	return nil
}
