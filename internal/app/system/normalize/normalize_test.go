package normalize_test

import (
	"testing"

	"github.com/dalemusser/pickuphub/internal/app/system/normalize"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0912345678", "0912345678"},
		{"09 1234-5678", "0912345678"},
		{"  +886 912 345 678  ", "+886912345678"},
		{"(02) 2345 6789", "0223456789"},
		{"", ""},
		{"ext. 123", "123"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalize.Phone(tt.input); got != tt.want {
				t.Errorf("Phone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Alice Chen", "Alice Chen"},
		{"  Alice   Chen  ", "Alice Chen"},
		{"", ""},
		{"   ", ""},
		{"UPPER CASE", "UPPER CASE"}, // Name preserves case
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalize.Name(tt.input); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"sunrise01", "SUNRISE01"},
		{"  Sunrise01  ", "SUNRISE01"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalize.Code(tt.input); got != tt.want {
				t.Errorf("Code(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
