// Package model defines the core domain types for chatrelay.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	MaxHandleLength    = 32
	MaxGroupNameLength = 64
)

var ErrHandleEmpty = errors.New("handle must not be empty")
var ErrHandleTooLong = fmt.Errorf("handle must not exceed %d characters", MaxHandleLength)
var ErrHandleInvalidChars = errors.New("handle must not contain whitespace or control characters")

var ErrGroupNameEmpty = errors.New("group name must not be empty")
var ErrGroupNameTooLong = fmt.Errorf("group name must not exceed %d characters", MaxGroupNameLength)
var ErrGroupNameInvalidChars = errors.New("group name must not contain whitespace or control characters")

// ValidateHandle checks a client identity handle: non-empty after
// trimming, bounded length, no whitespace or control characters.
func ValidateHandle(handle string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return ErrHandleEmpty
	}
	if utf8.RuneCountInString(handle) > MaxHandleLength {
		return ErrHandleTooLong
	}
	for _, r := range handle {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrHandleInvalidChars
		}
	}
	return nil
}

// ValidateGroupName applies the same discipline to group names.
func ValidateGroupName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrGroupNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxGroupNameLength {
		return ErrGroupNameTooLong
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrGroupNameInvalidChars
		}
	}
	return nil
}

// Group is a named set of member handles. Membership only grows and a
// group's existence is independent of whether its members are online.
type Group struct {
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// Transfer records one relayed file payload for operator audit.
type Transfer struct {
	ID         int64     `json:"id"`
	Sender     string    `json:"sender"`
	Target     string    `json:"target"` // recipient handle or group name
	Mode       string    `json:"mode"`   // "private" or "group"
	Filename   string    `json:"filename"`
	StoredPath string    `json:"stored_path"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}
