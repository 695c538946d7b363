package phone

import "testing"

func TestNormalizeE164FormatsNationalNumber(t *testing.T) {
	got := NormalizeE164("(401) 416-5676")
	if got != "+14014165676" {
		t.Fatalf("expected +14014165676, got %q", got)
	}
}

func TestNormalizeE164KeepsInternationalNumber(t *testing.T) {
	got := NormalizeE164(" +31 6 12345678 ")
	if got != "+31612345678" {
		t.Fatalf("expected +31612345678, got %q", got)
	}
}

func TestNormalizeE164ReturnsTrimmedInputOnGarbage(t *testing.T) {
	got := NormalizeE164("  not-a-number ")
	if got != "not-a-number" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("+14014165676") {
		t.Fatal("expected valid number")
	}
	if IsValid("12") {
		t.Fatal("expected invalid number")
	}
}
