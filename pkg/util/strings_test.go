package util

import "testing"

func TestSplitCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"unknown-type", 1},
		{"unknown-type,invalid-scalar-unit", 2},
		{"unknown-type, invalid-scalar-unit, , missing-content-type", 3},
	}

	for _, tt := range tests {
		got := SplitCommaSeparated(tt.input)
		if len(got) != tt.want {
			t.Errorf("SplitCommaSeparated(%q) = %v (len %d), want len %d", tt.input, got, len(got), tt.want)
		}
	}
}

func TestCoalesceString(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"first set", []string{"a", "b"}, "a"},
		{"skip empty", []string{"", "", "c"}, "c"},
		{"all empty", []string{"", ""}, ""},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoalesceString(tt.values...); got != tt.want {
				t.Errorf("CoalesceString(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"vnffg-sample", "vnffg-sample"},
		{"vnf 1/vdu", "vnf-1-vdu"},
		{"v1.2_rc", "v1.2_rc"},
		{"a:b", "a-b"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.input); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
