package urlutil

import "testing"

func TestLowerASCII(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello", "hello"},
		{"HELLO", "hello"},
		{"hello", "hello"},
		{"HTTPS", "https"},
		{"MixedCASE", "mixedcase"},
		{"already-lower", "already-lower"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LowerASCII(tt.input); got != tt.expected {
				t.Errorf("LowerASCII(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCollapseSlashes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/a//b/?", "/a/b/?"},
		{"///", "/"},
		{"/a/b", "/a/b"},
		{"", ""},
		{"//a///b//c", "/a/b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CollapseSlashes(tt.input); got != tt.expected {
				t.Errorf("CollapseSlashes(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripWWW(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"www.example.com", "example.com"},
		{"example.com", "example.com"},
		{"www.www.example.com", "www.example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := StripWWW(tt.input); got != tt.expected {
				t.Errorf("StripWWW(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHasHostSuffix(t *testing.T) {
	tests := []struct {
		host     string
		suffix   string
		expected bool
	}{
		{"h.net", "h.net", true},
		{"sub.h.net", "h.net", true},
		{"deep.sub.h.net", "h.net", true},
		{"evilh.net", "h.net", true},
		{"h.net.evil.com", "h.net", false},
	}

	for _, tt := range tests {
		t.Run(tt.host+"/"+tt.suffix, func(t *testing.T) {
			if got := HasHostSuffix(tt.host, tt.suffix); got != tt.expected {
				t.Errorf("HasHostSuffix(%q, %q) = %v, want %v", tt.host, tt.suffix, got, tt.expected)
			}
		})
	}
}
