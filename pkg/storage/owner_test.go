package storage

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSetGetOwner(t *testing.T) {
	ctx := context.Background()
	if got := GetOwner(ctx); got != "" {
		t.Errorf("GetOwner(empty ctx) = %q, want empty", got)
	}

	ctx = SetOwner(ctx, "user-abc")
	if got := GetOwner(ctx); got != "user-abc" {
		t.Errorf("GetOwner = %q, want %q", got, "user-abc")
	}

	ctx = SetOwner(ctx, "user-xyz")
	if got := GetOwner(ctx); got != "user-xyz" {
		t.Errorf("GetOwner = %q, want %q", got, "user-xyz")
	}
}

func TestGetOwner_NoCollision(t *testing.T) {
	ctx := context.WithValue(context.Background(), "owner", "wrong")
	if got := GetOwner(ctx); got != "" {
		t.Errorf("GetOwner should not match string key, got %q", got)
	}
}

func TestTitleFromPrompt(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"short", "What is Go?", "What is Go?"},
		{"whitespace collapsed", "  line one\n\n\tline two  ", "line one line two"},
		{"blank", "   ", "New chat"},
		{"exactly limit", strings.Repeat("a", 60), strings.Repeat("a", 60)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TitleFromPrompt(tt.prompt); got != tt.want {
				t.Errorf("TitleFromPrompt(%q) = %q, want %q", tt.prompt, got, tt.want)
			}
		})
	}

	long := TitleFromPrompt(strings.Repeat("ü", 100))
	if n := utf8.RuneCountInString(long); n != MaxTitleRunes {
		t.Errorf("long title has %d runes, want %d", n, MaxTitleRunes)
	}
	if !utf8.ValidString(long) {
		t.Error("truncation split a multi-byte rune")
	}
}
