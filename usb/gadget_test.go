package usb

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenGadgetReadsAndWritesThroughEndpointFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ep2"), []byte("payload"), 0o600); err != nil {
		t.Fatalf("seed ep2: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ep3"), nil, 0o600); err != nil {
		t.Fatalf("seed ep3: %v", err)
	}

	g, err := OpenGadget(dir, "ep2", "ep3", "")
	if err != nil {
		t.Fatalf("OpenGadget: %v", err)
	}
	defer g.Close()

	buf := make([]byte, len("payload"))
	if _, err := g.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "payload" {
		t.Fatalf("got %q", buf)
	}

	if _, err := g.Write([]byte("reply")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "ep3"))
	if err != nil {
		t.Fatalf("read back ep3: %v", err)
	}
	if string(got) != "reply" {
		t.Fatalf("got %q want reply", got)
	}

	if !g.WaitReady(time.Millisecond) {
		t.Fatal("expected WaitReady with no udcState path to report ready immediately")
	}
}

func TestGadgetTransportWaitReadyPollsUDCState(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "ep2"), nil, 0o600)
	os.WriteFile(filepath.Join(dir, "ep3"), nil, 0o600)

	statePath := filepath.Join(dir, "state")
	os.WriteFile(statePath, []byte("not attached\n"), 0o600)

	g, err := OpenGadget(dir, "ep2", "ep3", statePath)
	if err != nil {
		t.Fatalf("OpenGadget: %v", err)
	}
	defer g.Close()

	if g.WaitReady(5 * time.Millisecond) {
		t.Fatal("expected not-ready while state file says not attached")
	}

	os.WriteFile(statePath, []byte("configured\n"), 0o600)
	if !g.WaitReady(50 * time.Millisecond) {
		t.Fatal("expected WaitReady to observe configured state")
	}
}
