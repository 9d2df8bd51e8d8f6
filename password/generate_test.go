package password

import (
	"errors"
	"testing"
	"unicode/utf8"
)

func TestGenerateAlwaysPassesValidation(t *testing.T) {
	for i := 0; i < 1000; i++ {
		length := MinLength + i%(MaxLength-MinLength+1)
		pw, err := Generate(length)
		if err != nil {
			t.Fatalf("Generate(%d) error: %v", length, err)
		}
		if utf8.RuneCountInString(pw) != length {
			t.Fatalf("Generate(%d) returned %d characters", length, len(pw))
		}
		if ok, violations := ValidateStrength(pw); !ok {
			t.Fatalf("Generate(%d) = %q violates %v", length, pw, violations)
		}
	}
}

func TestGenerateDefaultLength(t *testing.T) {
	pw, err := Generate(0)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(pw) != DefaultGenerateLength {
		t.Fatalf("expected %d characters, got %d", DefaultGenerateLength, len(pw))
	}
}

func TestGenerateRejectsInvalidLength(t *testing.T) {
	for _, n := range []int{-1, 1, MinLength - 1, MaxLength + 1} {
		if _, err := Generate(n); !errors.Is(err, ErrInvalidLength) {
			t.Fatalf("Generate(%d): expected ErrInvalidLength, got %v", n, err)
		}
	}
}

func TestGenerateIsNotRepeated(t *testing.T) {
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		pw, err := Generate(16)
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		if _, dup := seen[pw]; dup {
			t.Fatalf("duplicate password generated: %q", pw)
		}
		seen[pw] = struct{}{}
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if len(tok) != 43 {
		t.Fatalf("expected 43 base64url characters, got %d", len(tok))
	}

	if _, err := GenerateToken(8); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}
