package storage

import (
	"context"
	"strings"
	"unicode"
)

type ownerKey struct{}

// SetOwner scopes storage operations in ctx to owner.
func SetOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// GetOwner returns the owner in ctx, or "" when the caller is anonymous.
// Anonymous sessions are visible only to anonymous callers.
func GetOwner(ctx context.Context) string {
	if v, ok := ctx.Value(ownerKey{}).(string); ok {
		return v
	}
	return ""
}

// MaxTitleRunes bounds a session title derived from a prompt.
const MaxTitleRunes = 60

// TitleFromPrompt derives a session title: whitespace runs collapse to a
// single space and the result is cut to MaxTitleRunes runes.
func TitleFromPrompt(prompt string) string {
	title := strings.Join(strings.FieldsFunc(prompt, unicode.IsSpace), " ")
	r := []rune(title)
	if len(r) > MaxTitleRunes {
		title = strings.TrimRightFunc(string(r[:MaxTitleRunes]), unicode.IsSpace)
	}
	if title == "" {
		title = "New chat"
	}
	return title
}
