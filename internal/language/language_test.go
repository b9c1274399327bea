package language

import "testing"

func TestDisplayName(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"vi", "Vietnamese"},
		{"ja", "Japanese"},
		{"fr", "French"},
		{"", "Unknown"},
		{"   ", "Unknown"},
		{"vietnamese food menu", "Vietnamese Food Menu"},
	}
	for _, tc := range cases {
		if got := DisplayName(tc.input); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
