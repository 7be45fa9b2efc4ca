package usb

import (
	"context"
	"io"
	"time"
)

// LoopbackTransport is an in-memory Transport backed by a pair of
// io.Pipes, letting a test drive a full command/data/response cycle
// without real hardware. Grounded on the teacher's mtp/nullreader.go
// NullReader/NullWriter — a zero-cost io.Reader/io.Writer stand-in —
// generalized here into a pair that actually carries bytes both ways.
type LoopbackTransport struct {
	outR *io.PipeReader
	outW *io.PipeWriter
	inR  *io.PipeReader
	inW  *io.PipeWriter

	ctx    context.Context
	cancel context.CancelFunc
}

// Host is the test-side handle to a LoopbackTransport: it writes the
// Command/Data bytes a responder receives, and reads back whatever Data
// and Response bytes the responder under test sends.
type Host struct {
	w *io.PipeWriter
	r *io.PipeReader
}

// NewLoopbackTransport returns a connected Transport/Host pair. The
// Transport plugs straight into engine.Engine.Serve; the Host plugs into
// the test driving it.
func NewLoopbackTransport() (*LoopbackTransport, *Host) {
	outR, outW := io.Pipe()
	inR, inW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	lt := &LoopbackTransport{outR: outR, outW: outW, inR: inR, inW: inW, ctx: ctx, cancel: cancel}
	return lt, &Host{w: outW, r: inR}
}

func (l *LoopbackTransport) Read(p []byte) (int, error)  { return l.outR.Read(p) }
func (l *LoopbackTransport) Write(p []byte) (int, error) { return l.inW.Write(p) }

// WaitReady is always immediately ready once constructed; a loopback pair
// has no physical link state to wait on.
func (l *LoopbackTransport) WaitReady(timeout time.Duration) bool {
	select {
	case <-l.ctx.Done():
		return false
	default:
		return true
	}
}

func (l *LoopbackTransport) Cancel() {
	l.cancel()
	l.outR.CloseWithError(io.ErrClosedPipe)
	l.inW.CloseWithError(io.ErrClosedPipe)
}

func (l *LoopbackTransport) Close() error {
	l.outW.Close()
	return l.inR.Close()
}

func (h *Host) Write(p []byte) (int, error) { return h.w.Write(p) }
func (h *Host) Read(p []byte) (int, error)  { return h.r.Read(p) }

func (h *Host) Close() error {
	h.w.Close()
	return h.r.Close()
}

var _ Transport = (*LoopbackTransport)(nil)
