//go:build !linux

package evdev

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/glasstokey/glasstokey/internal/frame"
)

// ErrUnsupported is returned by Open on platforms without a Linux evdev subsystem.
var ErrUnsupported = errors.New("evdev capture is only supported on linux")

// Device is an unusable stand-in on non-Linux platforms; Open always fails with
// ErrUnsupported.
type Device struct{}

// Open always returns ErrUnsupported on this platform.
func Open(path string, side frame.Side, numSlots int, log *logrus.Entry) (*Device, error) {
	return nil, ErrUnsupported
}

// ReadFrame always fails; Device values on this platform are never constructed successfully.
func (d *Device) ReadFrame(arrivalTicks int64, out *frame.Frame) error { return ErrUnsupported }

// Run never calls ingest on this platform.
func (d *Device) Run(ctx context.Context, ingest func(*frame.Frame)) {}

// Close is a no-op.
func (d *Device) Close() error { return nil }
