package handlers

import "testing"

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no args", input: "/search", expected: ""},
		{name: "single arg", input: "/search Asuna", expected: "Asuna"},
		{name: "multi word", input: "/hmode My Dream Team", expected: "My Dream Team"},
		{name: "extra whitespace", input: "/search   Asuna  ", expected: "Asuna"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := commandArgs(tt.input); got != tt.expected {
				t.Errorf("commandArgs(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseTradeArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantTo   string
		wantGive string
		wantWant string
		wantOK   bool
	}{
		{
			name:   "simple",
			input:  "@bob Asuna for Emilia",
			wantTo: "bob", wantGive: "Asuna", wantWant: "Emilia", wantOK: true,
		},
		{
			name:   "multi word names",
			input:  "@bob Asuna Yuuki for Rem Rezero",
			wantTo: "bob", wantGive: "Asuna Yuuki", wantWant: "Rem Rezero", wantOK: true,
		},
		{
			name:   "name containing for",
			input:  "@bob Formidable for Emilia",
			wantTo: "bob", wantGive: "Formidable", wantWant: "Emilia", wantOK: true,
		},
		{name: "missing at sign", input: "bob Asuna for Emilia"},
		{name: "missing separator", input: "@bob Asuna Emilia"},
		{name: "empty username", input: "@ Asuna for Emilia"},
		{name: "empty give side", input: "@bob for Emilia"},
		{name: "empty want side", input: "@bob Asuna for "},
		{name: "empty input", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			to, give, want, ok := parseTradeArgs(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseTradeArgs(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if to != tt.wantTo || give != tt.wantGive || want != tt.wantWant {
				t.Errorf("parseTradeArgs(%q) = %q, %q, %q; want %q, %q, %q",
					tt.input, to, give, want, tt.wantTo, tt.wantGive, tt.wantWant)
			}
		})
	}
}

func TestParseGiftArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantTo   string
		wantChar string
		wantOK   bool
	}{
		{name: "simple", input: "@bob Asuna", wantTo: "bob", wantChar: "Asuna", wantOK: true},
		{name: "multi word name", input: "@bob Asuna Yuuki", wantTo: "bob", wantChar: "Asuna Yuuki", wantOK: true},
		{name: "missing at sign", input: "bob Asuna"},
		{name: "missing character", input: "@bob"},
		{name: "empty input", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			to, char, ok := parseGiftArgs(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseGiftArgs(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && (to != tt.wantTo || char != tt.wantChar) {
				t.Errorf("parseGiftArgs(%q) = %q, %q; want %q, %q", tt.input, to, char, tt.wantTo, tt.wantChar)
			}
		})
	}
}
