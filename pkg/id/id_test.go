package id

import (
	"bytes"
	"testing"
)

func TestNextMonotonic(t *testing.T) {
	g := NewGenerator()
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		cur := g.Next()
		if bytes.Compare(cur[:], prev[:]) <= 0 {
			t.Fatalf("ids not strictly increasing: %s then %s", prev, cur)
		}
		prev = cur
	}
}

func TestClockGoingBackwards(t *testing.T) {
	g := NewGenerator()
	orig := NowMs
	now := int64(1_700_000_000_000)
	NowMs = func() int64 { return now }
	t.Cleanup(func() { NowMs = orig })

	a := g.Next()
	now -= 5_000
	b := g.Next()
	if bytes.Compare(b[:], a[:]) <= 0 {
		t.Fatalf("expected monotonic ids despite clock regression: %s then %s", a, b)
	}
}

func TestParseRoundTrip(t *testing.T) {
	g := NewGenerator()
	id := g.Next()
	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip mismatch: %s vs %s", id, parsed)
	}
	if _, err := Parse("zz"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}
