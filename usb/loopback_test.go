package usb

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func TestLoopbackTransportCarriesBytesBothWays(t *testing.T) {
	transport, host := NewLoopbackTransport()

	go func() {
		host.Write([]byte("command bytes"))
	}()

	buf := make([]byte, len("command bytes"))
	if _, err := io.ReadFull(transport, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "command bytes" {
		t.Fatalf("got %q", buf)
	}

	go func() {
		transport.Write([]byte("response bytes"))
	}()
	var got bytes.Buffer
	if _, err := io.CopyN(&got, host, int64(len("response bytes"))); err != nil {
		t.Fatalf("host read: %v", err)
	}
	if got.String() != "response bytes" {
		t.Fatalf("got %q", got.String())
	}
}

func TestLoopbackTransportWaitReady(t *testing.T) {
	transport, _ := NewLoopbackTransport()
	if !transport.WaitReady(10 * time.Millisecond) {
		t.Fatal("expected a fresh loopback pair to be immediately ready")
	}
	transport.Cancel()
	if transport.WaitReady(10 * time.Millisecond) {
		t.Fatal("expected WaitReady to report not-ready after Cancel")
	}
}

func TestLoopbackTransportCancelUnblocksRead(t *testing.T) {
	transport, _ := NewLoopbackTransport()
	done := make(chan error, 1)
	go func() {
		_, err := transport.Read(make([]byte, 1))
		done <- err
	}()

	transport.Cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Read to return an error after Cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after Cancel")
	}
}
