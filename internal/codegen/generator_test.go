package codegen_test

import (
	"strings"
	"testing"

	"github.com/keeperfind/keeper-auth/internal/codegen"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func TestGenerateShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := codegen.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(code) != codegen.CodeLength {
			t.Fatalf("len(code) = %d, want %d", len(code), codegen.CodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(alphanumeric, r) {
				t.Fatalf("code %q contains non-alphanumeric rune %q", code, r)
			}
		}
	}
}

func TestGenerateUniqueness(t *testing.T) {
	const trials = 10000
	seen := make(map[string]struct{}, trials)
	for i := 0; i < trials; i++ {
		code, err := codegen.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code after %d trials: %q", i, code)
		}
		seen[code] = struct{}{}
	}
}
