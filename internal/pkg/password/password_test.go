package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	Cost = bcrypt.MinCost
	defer func() { Cost = DefaultCost }()

	hash, err := Hash("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "password123" {
		t.Fatal("hash is the plain text")
	}
	if !Verify("password123", hash) {
		t.Error("correct password rejected")
	}
	if Verify("password124", hash) {
		t.Error("wrong password accepted")
	}
}

func TestHashToken(t *testing.T) {
	a, b := HashToken("token-a"), HashToken("token-b")
	if len(a) != 64 || a == b || a != HashToken("token-a") {
		t.Errorf("HashToken = %q / %q", a, b)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1234567", false},
		{"12345678", true},
		{"ééééééé", false},
		{"éééééééé", true},
		{strings.Repeat("a", MaxLength), true},
		{strings.Repeat("a", MaxLength+1), false},
	}
	for _, tt := range tests {
		if got := ValidatePassword(tt.in); got != tt.want {
			t.Errorf("ValidatePassword(%d bytes) = %v, want %v", len(tt.in), got, tt.want)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	Cost = bcrypt.MinCost
	defer func() { Cost = DefaultCost }()

	hash, _ := Hash("password123")
	if NeedsRehash(hash) {
		t.Error("fresh hash flagged")
	}
	Cost = bcrypt.MinCost + 1
	if !NeedsRehash(hash) {
		t.Error("cheaper hash not flagged")
	}
	if !NeedsRehash("not-a-hash") {
		t.Error("garbage not flagged")
	}
}
