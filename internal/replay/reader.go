package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Reader parses an ATPCAP01 stream record by record, enforcing every invariant in spec.md
// §4.10: sequence integrity, arrival-tick monotonicity, payload length, and meta/frame count
// agreement (checked once the stream is fully consumed).
type Reader struct {
	r             io.Reader
	version       int32
	tickFrequency int64

	expectSeq      uint64
	haveLastTicks  bool
	lastTicks      int64
	framesCaptured int // -1 until a meta record sets it
	framesRead     int
	closed         bool
}

// NewReader validates the 20-byte file header and returns a Reader positioned at the first
// record.
func NewReader(r io.Reader) (*Reader, error) {
	hdr := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("read file header: %w", ErrInvalidHeader)
	}
	if string(hdr[0:8]) != magic {
		return nil, fmt.Errorf("bad magic %q: %w", hdr[0:8], ErrInvalidHeader)
	}
	version := int32(binary.LittleEndian.Uint32(hdr[8:12]))
	if version < MinVersion || version > MaxVersion {
		return nil, fmt.Errorf("version %d: %w", version, ErrUnsupportedVersion)
	}
	tickFreq := int64(binary.LittleEndian.Uint64(hdr[12:20]))

	return &Reader{r: r, version: version, tickFrequency: tickFreq, expectSeq: 1, framesCaptured: -1}, nil
}

// Version returns the stream's declared version (2 or 3).
func (rd *Reader) Version() int32 { return rd.version }

// TickFrequency returns ticks-per-second for converting ArrivalTicks to seconds.
func (rd *Reader) TickFrequency() int64 { return rd.tickFrequency }

// Next returns the next record, or io.EOF once the stream is exhausted (after verifying the
// meta record's frames_captured matches the number of frame records actually read).
func (rd *Reader) Next() (*Record, error) {
	if rd.closed {
		return nil, io.EOF
	}

	hdrBuf := make([]byte, recordHeaderSize)
	n, err := io.ReadFull(rd.r, hdrBuf)
	if err == io.EOF && n == 0 {
		rd.closed = true
		if rd.framesCaptured >= 0 && rd.framesRead != rd.framesCaptured {
			return nil, fmt.Errorf("captured %d, read %d: %w", rd.framesCaptured, rd.framesRead, ErrMetaFrameCountMismatch)
		}
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("record header: %w", ErrTruncatedRecordHeader)
	}

	h := RecordHeader{
		PayloadLength:  int32(binary.LittleEndian.Uint32(hdrBuf[0:4])),
		ArrivalTicks:   int64(binary.LittleEndian.Uint64(hdrBuf[4:12])),
		DeviceIndex:    int32(binary.LittleEndian.Uint32(hdrBuf[12:16])),
		DeviceHash:     binary.LittleEndian.Uint32(hdrBuf[16:20]),
		VendorID:       binary.LittleEndian.Uint32(hdrBuf[20:24]),
		ProductID:      binary.LittleEndian.Uint32(hdrBuf[24:28]),
		UsagePage:      binary.LittleEndian.Uint16(hdrBuf[28:30]),
		Usage:          binary.LittleEndian.Uint16(hdrBuf[30:32]),
		SideHint:       hdrBuf[32],
		DecoderProfile: hdrBuf[33],
	}

	if h.PayloadLength < 0 {
		return nil, fmt.Errorf("payload length %d: %w", h.PayloadLength, ErrInvalidPayloadLength)
	}
	payload := make([]byte, h.PayloadLength)
	if _, err := io.ReadFull(rd.r, payload); err != nil {
		return nil, fmt.Errorf("record payload: %w", ErrTruncatedRecordPayload)
	}

	if h.DeviceIndex == metaDeviceIndex {
		var meta MetaPayload
		if err := json.Unmarshal(payload, &meta); err != nil {
			return nil, fmt.Errorf("meta payload: %w", err)
		}
		rd.framesCaptured = meta.FramesCaptured
		return &Record{Header: h, Meta: &meta}, nil
	}

	fr, err := parseFrameRecord(payload)
	if err != nil {
		return nil, err
	}

	if fr.Seq != rd.expectSeq {
		return nil, fmt.Errorf("expected seq %d, got %d: %w", rd.expectSeq, fr.Seq, ErrInvalidSequence)
	}
	rd.expectSeq++

	if rd.haveLastTicks && h.ArrivalTicks < rd.lastTicks {
		return nil, fmt.Errorf("arrival_ticks %d < previous %d: %w", h.ArrivalTicks, rd.lastTicks, ErrNonMonotonicArrivalTicks)
	}
	rd.lastTicks = h.ArrivalTicks
	rd.haveLastTicks = true
	rd.framesRead++

	return &Record{Header: h, Frame: fr}, nil
}

func parseFrameRecord(payload []byte) (*FrameRecord, error) {
	if len(payload) < frameHeaderSize {
		return nil, fmt.Errorf("frame payload too short (%d bytes): %w", len(payload), ErrInvalidPayloadLength)
	}
	if binary.LittleEndian.Uint32(payload[0:4]) != frameMagic {
		return nil, fmt.Errorf("frame magic: %w", ErrFramePayloadMagicMismatch)
	}

	seq := binary.LittleEndian.Uint64(payload[4:12])
	tsBits := binary.LittleEndian.Uint64(payload[12:20])
	timestampSec := math.Float64frombits(tsBits)
	deviceNumericID := binary.LittleEndian.Uint64(payload[20:28])
	contactCount := binary.LittleEndian.Uint16(payload[28:30])
	// payload[30:32] is reserved.

	want := frameHeaderSize + int(contactCount)*contactSize
	if want != len(payload) {
		return nil, fmt.Errorf("expected payload length %d, got %d: %w", want, len(payload), ErrInvalidPayloadLength)
	}

	contacts := make([]ContactSample, contactCount)
	off := frameHeaderSize
	for i := 0; i < int(contactCount); i++ {
		c := payload[off : off+contactSize]
		cs := ContactSample{
			ID:        int32(binary.LittleEndian.Uint32(c[0:4])),
			X:         math.Float32frombits(binary.LittleEndian.Uint32(c[4:8])),
			Y:         math.Float32frombits(binary.LittleEndian.Uint32(c[8:12])),
			Total:     math.Float32frombits(binary.LittleEndian.Uint32(c[12:16])),
			Pressure:  math.Float32frombits(binary.LittleEndian.Uint32(c[16:20])),
			MajorAxis: math.Float32frombits(binary.LittleEndian.Uint32(c[20:24])),
			MinorAxis: math.Float32frombits(binary.LittleEndian.Uint32(c[24:28])),
			Angle:     math.Float32frombits(binary.LittleEndian.Uint32(c[28:32])),
			Density:   math.Float32frombits(binary.LittleEndian.Uint32(c[32:36])),
			State:     c[36],
		}
		if err := putContactState(cs.State); err != nil {
			return nil, err
		}
		contacts[i] = cs
		off += contactSize
	}

	return &FrameRecord{Seq: seq, TimestampSec: timestampSec, DeviceNumericID: deviceNumericID, Contacts: contacts}, nil
}
