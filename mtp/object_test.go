package mtp

import "testing"

func TestHandleAllocatorSkipsZero(t *testing.T) {
	h := &HandleAllocator{next: 0xFFFFFFFF}
	first := h.Next()
	if first != 0xFFFFFFFF {
		t.Fatalf("got %#x want 0xFFFFFFFF", first)
	}
	second := h.Next()
	if second != 1 {
		t.Fatalf("expected wraparound to skip zero and land on 1, got %#x", second)
	}
}

func TestHandleAllocatorMonotonic(t *testing.T) {
	h := NewHandleAllocator()
	a := h.Next()
	b := h.Next()
	if b != a+1 {
		t.Fatalf("expected monotonic handles, got %d then %d", a, b)
	}
}

func TestObjectIsAssociation(t *testing.T) {
	dir := Object{Format: OFC_Association}
	if !dir.IsAssociation() {
		t.Fatal("expected Association format to report IsAssociation")
	}
	file := Object{Format: OFC_Undefined}
	if file.IsAssociation() {
		t.Fatal("expected Undefined format to not report IsAssociation")
	}
}
