package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Writer emits an ATPCAP01 v3 stream. Used by capture-format export tooling and by tests that
// synthesize fixtures.
type Writer struct {
	w io.Writer
}

// NewWriter writes the 20-byte file header (version 3) and returns a Writer ready for
// WriteMeta/WriteFrame calls.
func NewWriter(w io.Writer, tickFrequency int64) (*Writer, error) {
	hdr := make([]byte, fileHeaderSize)
	copy(hdr[0:8], magic)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(WriteVersion))
	binary.LittleEndian.PutUint64(hdr[12:20], uint64(tickFrequency))
	if _, err := w.Write(hdr); err != nil {
		return nil, fmt.Errorf("write file header: %w", err)
	}
	return &Writer{w: w}, nil
}

func (wr *Writer) writeRecord(h RecordHeader, payload []byte) error {
	h.PayloadLength = int32(len(payload))
	buf := make([]byte, recordHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.PayloadLength))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(h.ArrivalTicks))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.DeviceIndex))
	binary.LittleEndian.PutUint32(buf[16:20], h.DeviceHash)
	binary.LittleEndian.PutUint32(buf[20:24], h.VendorID)
	binary.LittleEndian.PutUint32(buf[24:28], h.ProductID)
	binary.LittleEndian.PutUint16(buf[28:30], h.UsagePage)
	binary.LittleEndian.PutUint16(buf[30:32], h.Usage)
	buf[32] = h.SideHint
	buf[33] = h.DecoderProfile

	if _, err := wr.w.Write(buf); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := wr.w.Write(payload); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}
	return nil
}

// WriteMeta writes the capture-level meta record. h.DeviceIndex is forced to -1.
func (wr *Writer) WriteMeta(h RecordHeader, meta MetaPayload) error {
	h.DeviceIndex = metaDeviceIndex
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	return wr.writeRecord(h, payload)
}

// WriteFrame writes one RFV3 frame record.
func (wr *Writer) WriteFrame(h RecordHeader, fr FrameRecord) error {
	payload := make([]byte, frameHeaderSize+len(fr.Contacts)*contactSize)
	binary.LittleEndian.PutUint32(payload[0:4], frameMagic)
	binary.LittleEndian.PutUint64(payload[4:12], fr.Seq)
	binary.LittleEndian.PutUint64(payload[12:20], math.Float64bits(fr.TimestampSec))
	binary.LittleEndian.PutUint64(payload[20:28], fr.DeviceNumericID)
	binary.LittleEndian.PutUint16(payload[28:30], uint16(len(fr.Contacts)))
	// payload[30:32] left zeroed (reserved).

	off := frameHeaderSize
	for _, cs := range fr.Contacts {
		if err := putContactState(cs.State); err != nil {
			return err
		}
		c := payload[off : off+contactSize]
		binary.LittleEndian.PutUint32(c[0:4], uint32(cs.ID))
		binary.LittleEndian.PutUint32(c[4:8], math.Float32bits(cs.X))
		binary.LittleEndian.PutUint32(c[8:12], math.Float32bits(cs.Y))
		binary.LittleEndian.PutUint32(c[12:16], math.Float32bits(cs.Total))
		binary.LittleEndian.PutUint32(c[16:20], math.Float32bits(cs.Pressure))
		binary.LittleEndian.PutUint32(c[20:24], math.Float32bits(cs.MajorAxis))
		binary.LittleEndian.PutUint32(c[24:28], math.Float32bits(cs.MinorAxis))
		binary.LittleEndian.PutUint32(c[28:32], math.Float32bits(cs.Angle))
		binary.LittleEndian.PutUint32(c[32:36], math.Float32bits(cs.Density))
		c[36] = cs.State
		off += contactSize
	}

	return wr.writeRecord(h, payload)
}
