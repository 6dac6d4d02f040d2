// Package usb is the reference USB capture collaborator (spec.md §2 C1, §5 "capture
// thread(s)"): it opens a trackpad's raw HID interface via gousb and turns interrupt-IN
// reports into frame.Frame values pushed to the Engine Actor. Field layout varies by vendor
// descriptor, so decoding is delegated to the Decoder the caller supplies.
package usb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"github.com/glasstokey/glasstokey/internal/frame"
)

// Decoder turns one raw interrupt-IN report into a Frame. Implementations are pure and
// allocation-free on the hot path (spec.md §5): they fill a caller-owned Frame rather than
// returning a new one.
type Decoder interface {
	Decode(report []byte, side frame.Side, arrivalTicks int64, out *frame.Frame) error
}

// Device wraps a single trackpad's USB connection.
type Device struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	iface   *gousb.Interface
	inEP    *gousb.InEndpoint
	side    frame.Side
	decoder Decoder
	log     *logrus.Entry

	closer func()
}

// Open finds the first device matching vendorID/productID, claims its HID interface, and
// opens the interrupt-IN endpoint epAddr for reading.
func Open(vendorID, productID gousb.ID, ifaceNum, altNum, epAddr int, side frame.Side, decoder Decoder, log *logrus.Entry) (*Device, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "capture.usb").WithField("side", side.String())

	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vendorID, productID)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("open trackpad (VID:0x%04x PID:0x%04x): %w", vendorID, productID, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("no trackpad found (VID:0x%04x PID:0x%04x)", vendorID, productID)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		log.WithError(err).Debug("set auto detach failed, continuing anyway")
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim config: %w", err)
	}
	iface, err := cfg.Interface(ifaceNum, altNum)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim interface %d: %w", ifaceNum, err)
	}
	inEP, err := iface.InEndpoint(epAddr)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("open in-endpoint %d: %w", epAddr, err)
	}

	return &Device{
		ctx: ctx, dev: dev, iface: iface, inEP: inEP,
		side: side, decoder: decoder, log: log,
		closer: func() { iface.Close(); cfg.Close(); dev.Close(); ctx.Close() },
	}, nil
}

// ReadFrame blocks for one interrupt-IN report and decodes it into out.
func (d *Device) ReadFrame(arrivalTicks int64, out *frame.Frame) error {
	buf := make([]byte, d.inEP.Desc.MaxPacketSize)
	n, err := d.inEP.Read(buf)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	return d.decoder.Decode(buf[:n], d.side, arrivalTicks, out)
}

// Run reads reports in a loop until ctx is cancelled, calling ingest with each decoded frame.
// Read errors are logged and retried after a short backoff rather than terminating the loop.
func (d *Device) Run(ctx context.Context, ingest func(*frame.Frame)) {
	d.log.Debug("usb capture started")
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("usb capture stopped")
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

// Close releases USB resources.
func (d *Device) Close() {
	if d.closer != nil {
		d.closer()
	}
}
