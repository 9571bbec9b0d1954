// Package debug provides category-gated debug logging for chorus.
//
// Categories select WHAT is logged (CHORUS_DEBUG or logging.debug in the
// config file). The level selects HOW MUCH (CHORUS_LOG_LEVEL or
// logging.level). At TRACE, full provider request and response bodies are
// written.
//
//	debug.Log("providers", "invoke", "provider", name, "model", id)
//	if debug.Enabled("engine") { ... }
//
// Categories: providers, engine, storage, auth, transport, mcp, config, all.
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// categories is written only by init and Init.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv("CHORUS_DEBUG"))
}

// Options configures the process-wide logger.
type Options struct {
	Categories string
	Level      string

	// Format is "text" (default) or "json".
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Init installs the default slog logger and the enabled categories.
// Environment variables take precedence over opts.
func Init(opts Options) *slog.Logger {
	cats := os.Getenv("CHORUS_DEBUG")
	if cats == "" {
		cats = opts.Categories
	}
	categories = parseCategories(cats)

	level := os.Getenv("CHORUS_LOG_LEVEL")
	if level == "" {
		level = opts.Level
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: renameTrace,
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, handlerOpts)
	} else {
		h = slog.NewTextHandler(out, handlerOpts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// renameTrace prints LevelTrace as TRACE instead of DEBUG-4.
func renameTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// Enabled reports whether debug output is active for the category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug record tagged with the category. No-op when disabled.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace record tagged with the category.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether the category is on and TRACE is active.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(context.Background(), LevelTrace)
}

// Raw writes unformatted text to stderr at TRACE, for copy-paste bodies.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories, sorted.
func Categories() []string {
	result := make([]string, 0, len(categories))
	for k := range categories {
		result = append(result, k)
	}
	slices.Sort(result)
	return result
}

// Truncate shortens s to at most maxRunes runes, appending "..." when cut.
func Truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
