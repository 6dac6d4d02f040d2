package usb

import (
	"fmt"

	"github.com/glasstokey/glasstokey/internal/frame"
)

// RawContactDecoder decodes the vendor HID report layout used by this repo's reference USB
// capture path: a one-byte contact count followed by fixed-size contact records (id uint8,
// x uint16, y uint16, pressure uint8, tip-state uint8), little-endian. Real trackpad vendors
// ship their own undocumented report shapes; a production deployment swaps this out for a
// profile-specific Decoder selected by decoder_profile (spec.md §4.10 RecordHeader).
type RawContactDecoder struct {
	MaxX, MaxY uint16
}

const rawContactRecordSize = 8

// Decode parses report into out. report must be at least 1 + count*8 bytes.
func (d RawContactDecoder) Decode(report []byte, side frame.Side, arrivalTicks int64, out *frame.Frame) error {
	if len(report) < 1 {
		return fmt.Errorf("usb report too short: %d bytes", len(report))
	}
	count := int(report[0])
	if count > frame.MaxContacts {
		count = frame.MaxContacts
	}
	need := 1 + count*rawContactRecordSize
	if len(report) < need {
		return fmt.Errorf("usb report truncated: need %d bytes, have %d", need, len(report))
	}

	*out = frame.Frame{ArrivalTicks: arrivalTicks, Side: side, MaxX: d.MaxX, MaxY: d.MaxY, ContactCount: count}
	off := 1
	for i := 0; i < count; i++ {
		rec := report[off : off+rawContactRecordSize]
		id := rec[0]
		x := uint16(rec[1]) | uint16(rec[2])<<8
		y := uint16(rec[3]) | uint16(rec[4])<<8
		pressure := rec[5]
		tip := rec[6] != 0

		var flags uint8
		if tip {
			flags |= frame.FlagTip
		}
		out.Contacts[i] = frame.Contact{
			ID: uint32(id), X: x, Y: y, Pressure: pressure,
			Flags: flags, Phase: frame.PhaseTouching, HasForce: pressure > 0,
		}
		off += rawContactRecordSize
	}
	return nil
}
