package core

import "testing"

func TestClampWithinRange(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestClampBelowLow(t *testing.T) {
	if got := Clamp(-3, 0, 10); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestClampAboveHigh(t *testing.T) {
	if got := Clamp(42, 0, 10); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}

func TestClampUint32(t *testing.T) {
	var v, lo, hi uint32 = 4000, 1, 2048
	if got := Clamp(v, lo, hi); got != hi {
		t.Fatalf("expected %d, got %d", hi, got)
	}
}

func TestMaxPicksLarger(t *testing.T) {
	if got := Max(uint32(3), uint32(7)); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := Max(uint32(7), uint32(3)); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}
