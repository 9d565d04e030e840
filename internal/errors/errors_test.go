package errors

import "testing"

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap(ErrExtraction, "offset %d after %d attempts", 500, 3)
	if !Is(err, ErrExtraction) {
		t.Fatalf("wrapped error lost its sentinel: %v", err)
	}
	want := "offset 500 after 3 attempts: extraction failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapChains(t *testing.T) {
	inner := Wrap(ErrBuild, "write staging")
	outer := Wrap(inner, "refresh")
	if !Is(outer, ErrBuild) {
		t.Fatalf("double wrap lost sentinel: %v", outer)
	}
	if Is(outer, ErrSwap) {
		t.Error("unrelated sentinel matched")
	}
}
