package language

import (
	"errors"
	"testing"
)

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"eng", "en"},
		{"fre", "fr"},
		{"ger", "de"},
		{"chi", "zh"},
		{"dut", "nl"},
		{"english", "en"},
		{"French", "fr"},
		{"uk", "uk"},
		{"ukr", "uk"},
		{"pt-BR", "pt"},
		{"abcdefghij", ""},
		{"", ""},
		{" ", ""},
	}
	for _, tc := range tests {
		if got := ToISO2(tc.input); got != tc.expected {
			t.Errorf("ToISO2(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestToISO3(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "eng"},
		{"fr", "fra"},
		{"de", "deu"},
		{"uk", "ukr"},
		{"", "und"},
		{"1234", "und"},
	}
	for _, tc := range tests {
		if got := ToISO3(tc.input); got != tc.expected {
			t.Errorf("ToISO3(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	for _, in := range []string{"", "abcdefghij", "not a language"} {
		if _, err := Resolve(in); !errors.Is(err, ErrUnknown) {
			t.Errorf("Resolve(%q) err = %v, want ErrUnknown", in, err)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("eng"); got != "English" {
		t.Fatalf("DisplayName(eng) = %q", got)
	}
	if got := DisplayName("uk"); got != "Ukrainian" {
		t.Fatalf("DisplayName(uk) = %q", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(\"\") = %q", got)
	}
}

func TestMatches(t *testing.T) {
	if !Matches("en", "eng") || !Matches("German", "ger") {
		t.Fatal("expected equivalent codes to match")
	}
	if Matches("en", "fr") || Matches("en", "") {
		t.Fatal("expected different codes not to match")
	}
}
