package utils

import (
	"errors"
	"testing"
	"time"
)

func TestAtoiDefault(t *testing.T) {
	if got := AtoiDefault("42", 0); got != 42 {
		t.Fatalf("AtoiDefault(42) = %d", got)
	}
	if got := AtoiDefault("", 10); got != 10 {
		t.Fatalf("AtoiDefault(empty) = %d", got)
	}
	if got := AtoiDefault("x", 5); got != 5 {
		t.Fatalf("AtoiDefault(garbage) = %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 9, 18, 4, 5, 123456789, time.UTC)
	tok := EncodeCursor(ts, "evt-1")

	gotTS, gotID, err := DecodeCursor(tok)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !gotTS.Equal(ts) || gotID != "evt-1" {
		t.Fatalf("round trip mismatch: %v %q", gotTS, gotID)
	}
}

func TestDecodeCursor_Malformed(t *testing.T) {
	for _, tok := range []string{"", "not base64 !!", "bm9wZQ", "MjAyNXxpZA"} {
		if _, _, err := DecodeCursor(tok); !errors.Is(err, ErrBadCursor) {
			t.Fatalf("DecodeCursor(%q): expected ErrBadCursor, got %v", tok, err)
		}
	}
}
