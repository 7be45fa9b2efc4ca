package mtp

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

func parseHex(t *testing.T, s string) []byte {
	t.Helper()
	s = strings.NewReplacer(" ", "", "\n", "", "\t", "").Replace(s)
	out, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return out
}

func TestEncodeDecodeObjectInfo(t *testing.T) {
	created := time.Date(2024, 1, 19, 11, 30, 0, 0, time.UTC)
	want := ObjectInfo{
		StorageID:        0x00010001,
		ObjectFormat:     uint16(OFC_Undefined),
		CompressedSize:   0x1000,
		Filename:         "Music",
		CaptureDate:      created,
		ModificationDate: created,
	}

	buf := &bytes.Buffer{}
	if err := Encode(buf, &want); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got ObjectInfo
	if err := Decode(buf, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.StorageID != want.StorageID || got.Filename != want.Filename ||
		got.ObjectFormat != want.ObjectFormat || got.CompressedSize != want.CompressedSize {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, want)
	}
	if !got.CaptureDate.Equal(want.CaptureDate) {
		t.Fatalf("CaptureDate roundtrip: got %v want %v", got.CaptureDate, want.CaptureDate)
	}
}

func TestEncodeStrEmpty(t *testing.T) {
	type S struct{ Name string }
	b := &bytes.Buffer{}
	if err := Encode(b, &S{}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if b.Bytes()[0] != 0 {
		t.Fatalf("empty string should encode as a single zero byte, got %v", b.Bytes())
	}
}

func TestEncodeDecodeTimeZero(t *testing.T) {
	type T struct{ When time.Time }
	b := &bytes.Buffer{}
	if err := Encode(b, &T{}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got T
	if err := Decode(b, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.When.IsZero() {
		t.Fatalf("expected zero time, got %v", got.When)
	}
}

func TestUint32ArrayRoundtrip(t *testing.T) {
	want := Uint32Array{Values: []uint32{1, 2, 0xFFFFFFFF}}
	b := &bytes.Buffer{}
	if err := Encode(b, &want); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got Uint32Array
	if err := Decode(b, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Values) != len(want.Values) {
		t.Fatalf("length mismatch: got %d want %d", len(got.Values), len(want.Values))
	}
	for i := range want.Values {
		if got.Values[i] != want.Values[i] {
			t.Errorf("index %d: got %#x want %#x", i, got.Values[i], want.Values[i])
		}
	}
}

func TestDevicePropDescStringForm(t *testing.T) {
	dp, ok := GetDevicePropDesc(DPC_DeviceFriendlyName)
	if !ok {
		t.Fatalf("expected DeviceFriendlyName to be supported")
	}

	buf := &bytes.Buffer{}
	if err := Encode(buf, &dp); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var back DevicePropDesc
	if err := Decode(buf, &back); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.DevicePropertyCode != uint16(DPC_DeviceFriendlyName) {
		t.Errorf("got code %#x want %#x", back.DevicePropertyCode, DPC_DeviceFriendlyName)
	}
	if s, ok := back.CurrentValue.(string); !ok || s != deviceFriendlyName {
		t.Errorf("got current value %#v want %q", back.CurrentValue, deviceFriendlyName)
	}
}

func TestParseHexIgnoresWhitespace(t *testing.T) {
	// sanity check for the fixture helper itself: the space between the
	// two-byte PacketHeader.Type and Code groups is dropped, leaving 4 bytes.
	bin := parseHex(t, "0100 0200")
	if len(bin) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(bin))
	}
}
