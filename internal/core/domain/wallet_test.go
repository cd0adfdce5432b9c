package domain

import (
	"errors"
	"testing"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"already canonical", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", false},
		{"mixed case", "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", false},
		{"surrounding whitespace", "  0xab5801a7d398351b8be11c439e05c5b3259aec9b ", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", false},
		{"missing prefix", "ab5801a7d398351b8be11c439e05c5b3259aec9b", "", true},
		{"too short", "0xab5801", "", true},
		{"non-hex characters", "0xzz5801a7d398351b8be11c439e05c5b3259aec9b", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAddress(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeAddress(%q) expected error, got %q", tt.in, got)
				}
				if !errors.Is(err, ErrInvalidAddress) {
					t.Errorf("expected ErrInvalidAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeAddress(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
