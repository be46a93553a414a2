package utils

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateIDs_ArePrefixedAndUnique(t *testing.T) {
	cases := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"connection", GenerateConnectionID, "conn_"},
		{"anonymous", GenerateAnonymousID, "anon_"},
		{"room", GenerateRoomID, "room_"},
		{"element", GenerateElementID, "el_"},
		{"message", GenerateMessageID, "msg_"},
		{"instance", GenerateInstanceID, "gw_"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := tc.gen(), tc.gen()
			if !strings.HasPrefix(a, tc.prefix) {
				t.Errorf("id %q missing prefix %q", a, tc.prefix)
			}
			if a == b {
				t.Errorf("expected unique ids, got %q twice", a)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  alice  ", "alice"},
		{"bob\x00\x01", "bob"},
		{"line\nbreak", "line\nbreak"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in); got != tc.want {
			t.Errorf("SanitizeString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("hello world", 8); got != "hello..." {
		t.Errorf("TruncateString = %q, want %q", got, "hello...")
	}
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("TruncateString = %q, want %q", got, "short")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.in); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsExpired(t *testing.T) {
	if IsExpired(time.Now(), time.Minute) {
		t.Error("fresh timestamp should not be expired")
	}
	if !IsExpired(time.Now().Add(-2*time.Minute), time.Minute) {
		t.Error("old timestamp should be expired")
	}
}
