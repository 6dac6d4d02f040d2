//go:build linux

// Package evdev is the Linux-native capture collaborator, reading Linux multitouch protocol
// B (ABS_MT_*) events directly off /dev/input/eventN via golang.org/x/sys/unix, for hosts
// where the trackpad is exposed as a kernel input device rather than claimed directly over
// USB (spec.md §2 C1, §5 "capture thread(s)").
package evdev

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/glasstokey/glasstokey/internal/frame"
)

// Linux input_event field codes this collaborator cares about (linux/input-event-codes.h).
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport   = 0
	synMTReport = 2

	absMTSlot        = 0x2f
	absMTTrackingID  = 0x39
	absMTPositionX   = 0x35
	absMTPositionY   = 0x36
	absMTPressure    = 0x3a
	absMTTouchMajor  = 0x30
	absMTTouchMinor  = 0x31
	absMTOrientation = 0x34

	btnTouch = 0x14a
	btnLeft  = 0x110

	inputEventSize = 24 // struct input_event on 64-bit Linux: {timeval(16), type(2), code(2), value(4)}
)

// rawSlot mirrors one ABS_MT_SLOT's in-progress state across the event stream, assembled
// incrementally as the kernel emits per-field ABS_MT_* events and finalized on SYN_REPORT.
type rawSlot struct {
	trackingID int32
	x, y       int32
	pressure   int32
	major      int32
	minor      int32
	active     bool
}

// Device reads one /dev/input/eventN node.
type Device struct {
	fd       int
	side     frame.Side
	maxX     uint16
	maxY     uint16
	slots    []rawSlot
	curSlot  int
	touching bool
	log      *logrus.Entry
}

// Open opens the evdev node at path and queries its ABS_MT_POSITION_X/Y ranges for scaling.
func Open(path string, side frame.Side, numSlots int, log *logrus.Entry) (*Device, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	maxX, maxY, err := queryAbsRanges(fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	if numSlots <= 0 {
		numSlots = frame.MaxContacts
	}
	return &Device{
		fd: fd, side: side, maxX: maxX, maxY: maxY,
		slots: make([]rawSlot, numSlots),
		log:   log.WithField("component", "capture.evdev").WithField("side", side.String()),
	}, nil
}

// queryAbsRanges reads the device's ABS_MT_POSITION_X/Y absinfo via EVIOCGABS to establish
// the Frame.MaxX/MaxY scale factors.
func queryAbsRanges(fd int) (maxX, maxY uint16, err error) {
	var absX, absY [6]int32 // struct input_absinfo: value,min,max,fuzz,flat,resolution

	const (
		eviocgabsBase = 0x80184540 // EVIOCGABS(0), i.e. ABS_X; EVIOCGABS(abs) is this value plus abs
	)
	// Reading via raw ioctl per-axis; EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo)
	if err := ioctlAbs(fd, absMTPositionX, &absX); err != nil {
		return 0, 0, fmt.Errorf("EVIOCGABS X: %w", err)
	}
	if err := ioctlAbs(fd, absMTPositionY, &absY); err != nil {
		return 0, 0, fmt.Errorf("EVIOCGABS Y: %w", err)
	}
	return uint16(absX[2]), uint16(absY[2]), nil
}

func ioctlAbs(fd int, abs uint, out *[6]int32) error {
	const iocSize = 24 // 6 * int32
	req := uintptr(0x80000000) | (uintptr(iocSize) << 16) | (uintptr('E') << 8) | (0x40 + uintptr(abs))
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(out)))
	if errno != 0 {
		return errno
	}
	return nil
}

// ReadFrame blocks until a SYN_REPORT completes a multitouch update, then returns it as a
// Frame. Contacts not updated this cycle retain their last known slot state (protocol B
// semantics: a slot persists across frames until ABS_MT_TRACKING_ID is set to -1).
func (d *Device) ReadFrame(arrivalTicks int64, out *frame.Frame) error {
	buf := make([]byte, inputEventSize)
	for {
		n, err := unix.Read(d.fd, buf)
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if n != inputEventSize {
			continue
		}
		typ := binary.LittleEndian.Uint16(buf[16:18])
		code := binary.LittleEndian.Uint16(buf[18:20])
		val := int32(binary.LittleEndian.Uint32(buf[20:24]))

		switch typ {
		case evAbs:
			d.applyAbs(code, val)
		case evKey:
			if code == btnTouch || code == btnLeft {
				d.touching = val != 0
			}
		case evSyn:
			if code == synReport {
				d.buildFrame(arrivalTicks, out)
				return nil
			}
		}
	}
}

func (d *Device) applyAbs(code uint16, val int32) {
	switch code {
	case absMTSlot:
		if int(val) >= 0 && int(val) < len(d.slots) {
			d.curSlot = int(val)
		}
	case absMTTrackingID:
		s := &d.slots[d.curSlot]
		s.trackingID = val
		s.active = val != -1
	case absMTPositionX:
		d.slots[d.curSlot].x = val
	case absMTPositionY:
		d.slots[d.curSlot].y = val
	case absMTPressure:
		d.slots[d.curSlot].pressure = val
	case absMTTouchMajor:
		d.slots[d.curSlot].major = val
	case absMTTouchMinor:
		d.slots[d.curSlot].minor = val
	}
}

func (d *Device) buildFrame(arrivalTicks int64, out *frame.Frame) {
	*out = frame.Frame{
		ArrivalTicks:  arrivalTicks,
		Side:          d.side,
		MaxX:          d.maxX,
		MaxY:          d.maxY,
		ButtonClicked: d.touching,
	}

	count := 0
	for i := range d.slots {
		s := &d.slots[i]
		if !s.active || count >= frame.MaxContacts {
			if s.active {
				count++ // still counted toward ContactCount for overflow accounting
			}
			continue
		}
		out.Contacts[count] = frame.Contact{
			ID:       uint32(s.trackingID),
			X:        clampU16(s.x),
			Y:        clampU16(s.y),
			Pressure: clampU8(s.pressure),
			Flags:    frame.FlagTip | frame.FlagConfidence,
			Phase:    frame.PhaseTouching,
			HasForce: s.pressure > 0,
		}
		count++
	}
	out.ContactCount = count
}

func clampU16(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

func clampU8(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 0xFF {
		return 0xFF
	}
	return uint8(v)
}

// Run reads frames in a loop until ctx is cancelled.
func (d *Device) Run(ctx context.Context, ingest func(*frame.Frame)) {
	d.log.Debug("evdev capture started")
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("evdev capture stopped")
			return
		default:
		}
		var f frame.Frame
		if err := d.ReadFrame(time.Now().UnixNano(), &f); err != nil {
			d.log.WithError(err).Warn("read failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		ingest(&f)
	}
}

// Close closes the evdev node.
func (d *Device) Close() error { return unix.Close(d.fd) }
