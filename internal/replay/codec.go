// Package replay implements the ATPCAP01 v3 capture container (spec.md §4.10, C10): a
// versioned binary format of normalized touch frames plus a meta record, and the harness
// that replays a capture file through a fresh Engine Actor (spec.md §4.11, C11) to produce a
// deterministic NDJSON transcript.
package replay

import (
	"fmt"

	"github.com/glasstokey/glasstokey/internal/frame"
)

const (
	magic           = "ATPCAP01"
	fileHeaderSize  = 20
	recordHeaderSize = 34
	frameMagic      = 0x33564652 // "RFV3" read little-endian as a u32
	frameHeaderSize = 32         // magic(4)+seq(8)+timestamp(8)+device_numeric_id(8)+count(2)+reserved(2)
	contactSize     = 40

	metaDeviceIndex = -1

	// MinVersion/MaxVersion bound the versions a Reader accepts (spec.md §4.10 compatibility:
	// readers accept 2 and 3).
	MinVersion = 2
	MaxVersion = 3
	// WriteVersion is the version this package's Writer emits.
	WriteVersion = 3
)

// RecordHeader is the 34-byte per-record header preceding every payload.
type RecordHeader struct {
	PayloadLength  int32
	ArrivalTicks   int64
	DeviceIndex    int32
	DeviceHash     uint32
	VendorID       uint32
	ProductID      uint32
	UsagePage      uint16
	Usage          uint16
	SideHint       uint8 // 0 unknown, 1 left, 2 right
	DecoderProfile uint8
}

// Side maps SideHint onto frame.Side.
func (h RecordHeader) Side() frame.Side { return frame.Side(h.SideHint) }

// MetaPayload is the capture-level metadata record (device_index == -1).
type MetaPayload struct {
	Type           string `json:"type"`
	Schema         string `json:"schema"`
	CapturedAt     string `json:"captured_at"`
	Platform       string `json:"platform"`
	Source         string `json:"source"`
	FramesCaptured int    `json:"frames_captured"`
}

// ContactSample is one contact within a RFV3 frame payload.
type ContactSample struct {
	ID        int32
	X, Y      float32
	Total     float32
	Pressure  float32
	MajorAxis float32
	MinorAxis float32
	Angle     float32
	Density   float32
	State     uint8
}

// FrameRecord is a parsed RFV3 payload.
type FrameRecord struct {
	Seq             uint64
	TimestampSec    float64
	DeviceNumericID uint64
	Contacts        []ContactSample
}

// Record is one parsed entry from a capture stream: exactly one of Meta or Frame is set.
type Record struct {
	Header RecordHeader
	Meta   *MetaPayload
	Frame  *FrameRecord
}

func putContactState(state uint8) error {
	if state > 7 {
		return fmt.Errorf("state %d: %w", state, ErrInvalidStateCode)
	}
	return nil
}
