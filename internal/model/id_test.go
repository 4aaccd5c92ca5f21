package model

import (
	"strings"
	"testing"
	"time"
)

func TestNewID_Format(t *testing.T) {
	id := NewID()
	if len(id) != 24 {
		t.Fatalf("NewID() length = %d, want 24", len(id))
	}
	if id != strings.ToLower(id) {
		t.Errorf("NewID() = %q, want lowercase hex", id)
	}
	if !IsID(id) {
		t.Errorf("IsID(%q) = false, want true", id)
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate %q after %d ids", id, i)
		}
		seen[id] = true
	}
}

func TestNewID_TimestampPrefix(t *testing.T) {
	before := time.Now().Unix()
	id := NewID()
	after := time.Now().Unix()

	// First 8 hex chars encode the creation time in unix seconds.
	var ts int64
	for _, c := range id[:8] {
		ts <<= 4
		switch {
		case c >= '0' && c <= '9':
			ts |= int64(c - '0')
		case c >= 'a' && c <= 'f':
			ts |= int64(c-'a') + 10
		default:
			t.Fatalf("NewID() prefix contains non-hex char %q", c)
		}
	}
	if ts < before || ts > after {
		t.Errorf("NewID() timestamp = %d, want between %d and %d", ts, before, after)
	}
}

func TestIsID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"507f1f77bcf86cd799439011", true},
		{"507F1F77BCF86CD799439011", true},
		{"507f1f77bcf86cd79943901", false}, // too short
		{"507f1f77bcf86cd7994390111", false},
		{"507f1f77bcf86cd79943901g", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsID(c.id); got != c.want {
			t.Errorf("IsID(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}
