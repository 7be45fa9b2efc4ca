// Package usb provides the bulk-pipe transport a responder's command loop
// runs over: a pair of endpoints a host writes Commands/Data into and
// reads Data/Responses out of. engine.Engine.Serve only needs an
// io.Reader and an io.Writer; Transport is the seam between that generic
// loop and a concrete link (a USB gadget, or a pipe in tests).
package usb

import (
	"io"
	"time"
)

// Transport is a responder-side bulk pipe: Read drains the host-to-device
// (OUT) endpoint, Write fills the device-to-host (IN) endpoint. Modeled on
// the teacher's mtp/device.go Device interface but inverted — a Device
// drives a whole transaction from the host side in one RunTransaction
// call; a Transport only ever moves bytes, leaving transaction framing to
// engine.Engine.Serve.
type Transport interface {
	io.Reader
	io.Writer

	// WaitReady blocks until the link is configured and enumerated by a
	// host, or timeout elapses, returning whether it became ready. Lets
	// the caller avoid spinning Engine.Serve against a disconnected
	// gadget, per original_source/src/usb.hpp's wait_ready.
	WaitReady(timeout time.Duration) bool

	// Cancel unblocks any in-flight Read/Write call, letting a shutdown
	// goroutine tear down a stuck transport the way
	// original_source/src/main.cpp's exit_thread_func unblocks usb::wait_xfer.
	// A WaitReady already in progress is not interrupted; it returns when
	// the link is ready or its own timeout elapses.
	Cancel()

	Close() error
}
