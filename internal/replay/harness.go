package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/glasstokey/glasstokey/internal/engine"
	"github.com/glasstokey/glasstokey/internal/frame"
)

// Harness drives a parsed capture file frame-by-frame through a fresh Engine Actor and emits
// a deterministic NDJSON transcript (spec.md §4.11, C11). The Engine must be freshly
// constructed and seeded with a known keymap/layouts by the caller before Run; the Harness
// itself owns no Engine state beyond the reference.
type Harness struct {
	eng *engine.Engine
}

// NewHarness wraps a caller-constructed Engine.
func NewHarness(eng *engine.Engine) *Harness {
	return &Harness{eng: eng}
}

// Run reads every record from r, feeds frame records through the Engine via ProcessSync, and
// writes one NDJSON transcript line per frame to out with alphabetically sorted keys (spec.md
// §4.11: "emitted as newline-delimited JSON with sorted keys").
func (h *Harness) Run(r io.Reader, out io.Writer) error {
	rd, err := NewReader(r)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(out)

	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if rec.Frame == nil {
			continue // meta record carries no transcript line
		}

		f := toFrame(rec.Header, rec.Frame)
		status, revision := h.eng.ProcessSync(f)

		line := map[string]interface{}{
			"capture_frames":  status.Diagnostics.CaptureFrames,
			"contact_count":   len(rec.Frame.Contacts),
			"device_index":    rec.Header.DeviceIndex,
			"left_contacts":   status.ContactCountBySide[frame.SideLeft],
			"right_contacts":  status.ContactCountBySide[frame.SideRight],
			"render_revision": revision,
			"seq":             rec.Frame.Seq,
		}
		encoded, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("marshal transcript record: %w", err)
		}
		if _, err := bw.Write(encoded); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// replayScale is the fixed-point scale used to re-quantize RFV3's normalized float32
// coordinates into Frame's uint16 fixed-point representation.
const replayScale = 65535

// toFrame converts one parsed RFV3 record into the Frame type the Core consumes. Contacts
// beyond frame.MaxContacts are dropped from the array but counted in ContactCount, so
// Frame.Overflowed() reports them correctly (spec.md §8 property 3).
func toFrame(h RecordHeader, fr *FrameRecord) *frame.Frame {
	f := &frame.Frame{
		ArrivalTicks: h.ArrivalTicks,
		Side:         h.Side(),
		MaxX:         replayScale,
		MaxY:         replayScale,
		ContactCount: len(fr.Contacts),
	}

	n := len(fr.Contacts)
	if n > frame.MaxContacts {
		n = frame.MaxContacts
	}
	for i := 0; i < n; i++ {
		cs := fr.Contacts[i]
		phase := frame.Phase(cs.State)

		var flags uint8
		if tipActive(phase) {
			flags |= frame.FlagTip
		}
		// RFV3 carries no explicit confidence bit; a positive contact-patch total is the
		// closest available signal that this is a deliberate touch rather than a sensor
		// artifact.
		if cs.Total > 0 {
			flags |= frame.FlagConfidence
		}

		f.Contacts[i] = frame.Contact{
			ID:       uint32(cs.ID),
			X:        clampScale(cs.X),
			Y:        clampScale(cs.Y),
			Pressure: clampPressure(cs.Pressure),
			Flags:    flags,
			Phase:    phase,
			HasForce: cs.Pressure > 0,
		}
	}
	return f
}

func tipActive(p frame.Phase) bool {
	switch p {
	case frame.PhaseStarting, frame.PhaseMaking, frame.PhaseTouching, frame.PhaseBreaking:
		return true
	default:
		return false
	}
}

func clampScale(v float32) uint16 {
	x := float64(v) * replayScale
	if x < 0 {
		x = 0
	}
	if x > replayScale {
		x = replayScale
	}
	return uint16(x)
}

func clampPressure(v float32) uint8 {
	x := v * 255
	if x < 0 {
		x = 0
	}
	if x > 255 {
		x = 255
	}
	return uint8(x)
}
