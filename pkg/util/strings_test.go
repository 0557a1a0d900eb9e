package util

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		" nvax ": "NVAX",
		"aapl":   "AAPL",
		"TSLA":   "TSLA",
		"":       "",
	}
	for in, want := range cases {
		if got := NormalizeSymbol(in); got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("8080", 9090); got != 8080 {
		t.Fatalf("got %d", got)
	}
	if got := ParseIntDefault("", 9090); got != 9090 {
		t.Fatalf("got %d", got)
	}
	if got := ParseIntDefault("not-a-port", 9090); got != 9090 {
		t.Fatalf("got %d", got)
	}
}
