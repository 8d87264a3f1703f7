package model

import (
	"strings"
	"testing"
)

func TestValidateHandle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid simple", "alice", nil},
		{"valid with numbers", "user123", nil},
		{"valid with underscore", "my_user", nil},
		{"valid unicode", "joão", nil},
		{"valid max length", strings.Repeat("a", MaxHandleLength), nil},
		{"surrounding spaces trimmed", "  alice  ", nil},
		{"empty", "", ErrHandleEmpty},
		{"only whitespace", "   ", ErrHandleEmpty},
		{"too long", strings.Repeat("a", MaxHandleLength+1), ErrHandleTooLong},
		{"embedded space", "has space", ErrHandleInvalidChars},
		{"tab character", "user\tname", ErrHandleInvalidChars},
		{"newline", "user\nname", ErrHandleInvalidChars},
		{"control char", "user\x00name", ErrHandleInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHandle(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateHandle(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGroupName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "devs", nil},
		{"valid max length", strings.Repeat("g", MaxGroupNameLength), nil},
		{"empty", "", ErrGroupNameEmpty},
		{"only whitespace", " \t ", ErrGroupNameEmpty},
		{"too long", strings.Repeat("g", MaxGroupNameLength+1), ErrGroupNameTooLong},
		{"embedded space", "my group", ErrGroupNameInvalidChars},
		{"control char", "grp\x07", ErrGroupNameInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGroupName(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateGroupName(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
