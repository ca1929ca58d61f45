package simhash

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	if Fingerprint(text) != Fingerprint(text) {
		t.Error("identical texts produced different fingerprints")
	}
}

func TestFingerprintSimilarTexts(t *testing.T) {
	a := Fingerprint("the quick brown fox jumps over the lazy dog")
	b := Fingerprint("the quick brown fox leaps over the lazy dog")
	if d := Distance(a, b); d > 10 {
		t.Errorf("one-word edit produced distance %d", d)
	}
}

func TestFingerprintDifferentTexts(t *testing.T) {
	a := Fingerprint("the quick brown fox jumps over the lazy dog")
	b := Fingerprint("completely unrelated content about quantum physics and mathematics")
	if d := Distance(a, b); d < 5 {
		t.Errorf("unrelated texts produced distance %d", d)
	}
}

func TestFingerprintEmptyInputs(t *testing.T) {
	if fp := Fingerprint(""); fp != 0 {
		t.Errorf("empty input fingerprint = %016x, want 0", fp)
	}
	if fp := Fingerprint("   \t\n  "); fp != 0 {
		t.Errorf("whitespace-only fingerprint = %016x, want 0", fp)
	}
	if fp := FingerprintBytes(nil); fp != 0 {
		t.Errorf("nil bytes fingerprint = %016x, want 0", fp)
	}
}

func TestHex(t *testing.T) {
	if got := Hex(0); got != "0000000000000000" {
		t.Errorf("Hex(0) = %q", got)
	}
	if got := Hex(0xdeadbeef); got != "00000000deadbeef" {
		t.Errorf("Hex(0xdeadbeef) = %q", got)
	}
	if got := Hex(^uint64(0)); got != "ffffffffffffffff" {
		t.Errorf("Hex(max) = %q", got)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	a := Fingerprint("the quick brown fox")
	if !Similar(a, a, 0) {
		t.Error("identical fingerprints must be similar at threshold 0")
	}

	b := Fingerprint("a completely different text about nothing related")
	d := Distance(a, b)
	if Similar(a, b, d-1) {
		t.Errorf("should not be similar below the distance (%d)", d)
	}
	if !Similar(a, b, d) {
		t.Errorf("should be similar at threshold equal to distance (%d)", d)
	}
}
