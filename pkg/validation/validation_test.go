package validation

import (
	"strings"
	"testing"
)

func TestValidateRoomID(t *testing.T) {
	cases := []struct {
		name    string
		roomID  string
		wantErr bool
	}{
		{"valid", "room_abc-123", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"too long", strings.Repeat("a", 101), true},
		{"invalid characters", "room/../etc", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRoomID(tc.roomID)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateRoomID(%q) error = %v, wantErr %v", tc.roomID, err, tc.wantErr)
			}
		})
	}
}

func TestValidateIdentityID(t *testing.T) {
	if err := ValidateIdentityID("anon_8f14e45f"); err != nil {
		t.Errorf("expected valid identity id, got %v", err)
	}
	if err := ValidateIdentityID(""); err == nil {
		t.Error("expected error for empty identity id")
	}
	if err := ValidateIdentityID("has spaces"); err == nil {
		t.Error("expected error for identity id with spaces")
	}
}

func TestValidateDisplayName(t *testing.T) {
	if err := ValidateDisplayName("Alice"); err != nil {
		t.Errorf("expected valid display name, got %v", err)
	}
	if err := ValidateDisplayName(""); err == nil {
		t.Error("expected error for empty display name")
	}
	if err := ValidateDisplayName(strings.Repeat("x", 65)); err == nil {
		t.Error("expected error for overlong display name")
	}
}

func TestValidateChatContent(t *testing.T) {
	if err := ValidateChatContent("hello"); err != nil {
		t.Errorf("expected valid content, got %v", err)
	}
	if err := ValidateChatContent("   "); err == nil {
		t.Error("expected error for blank content")
	}
	if err := ValidateChatContent(strings.Repeat("x", 4001)); err == nil {
		t.Error("expected error for overlong content")
	}
}

func TestValidateStringLength(t *testing.T) {
	if err := ValidateStringLength("abc", 1, 5, "field"); err != nil {
		t.Errorf("expected valid length, got %v", err)
	}
	if err := ValidateStringLength("", 1, 5, "field"); err == nil {
		t.Error("expected error for too-short string")
	}
	if err := ValidateStringLength("abcdef", 1, 5, "field"); err == nil {
		t.Error("expected error for too-long string")
	}
}
