package dispatch

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain digits", "5511999990000", "5511999990000", false},
		{"leading plus", "+5511999990000", "5511999990000", false},
		{"formatted", "+55 (11) 99999-0000", "5511999990000", false},
		{"dots", "55.11.99999.0000", "5511999990000", false},
		{"whitespace padding", "  5511999990000  ", "5511999990000", false},
		{"min length", "12345678", "12345678", false},
		{"too short", "1234567", "", true},
		{"too long", "1234567890123456", "", true},
		{"letters", "55x11999990000", "", true},
		{"empty", "", "", true},
		{"only plus", "+", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizePhone(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v is not ErrValidation", err)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
