package postgres

import "testing"

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"rain", "rain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\data`, `c:\\data`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
