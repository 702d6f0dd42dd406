package topic

import (
	"errors"
	"testing"
)

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"sensors/kitchen/temp", false},
		{"sensors/+/temp", false},
		{"sensors/#", false},
		{"#", false},
		{"+", false},
		{"+/+/#", false},
		{"", true},
		{"sensors/#/temp", true},
		{"sensors/kit+chen", true},
		{"sensors/kitchen#", true},
		{"sensors/\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			err := ValidateFilter(tt.filter)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFilter) {
				t.Errorf("ValidateFilter(%q) error = %v, want ErrInvalidFilter", tt.filter, err)
			}
		})
	}
}

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{"sensors/kitchen/temp", false},
		{"a", false},
		{"", true},
		{"sensors/+", true},
		{"sensors/#", true},
		{"bad\x00topic", true},
		{string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			err := ValidateTopic(tt.topic)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTopic(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("ValidateTopic(%q) error = %v, want ErrInvalidTopic", tt.topic, err)
			}
		})
	}
}

func TestHasWildcard(t *testing.T) {
	if !HasWildcard("a/+/b") {
		t.Error("HasWildcard(a/+/b) = false, want true")
	}
	if HasWildcard("a/b") {
		t.Error("HasWildcard(a/b) = true, want false")
	}
}
