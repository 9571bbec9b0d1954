package debug

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "providers", map[string]bool{"providers": true}},
		{"multiple", "providers,engine", map[string]bool{"providers": true, "engine": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " providers , engine ", map[string]bool{"providers": true, "engine": true}},
		{"uppercase normalized", "PROVIDERS,Engine", map[string]bool{"providers": true, "engine": true}},
		{"empty segments", "providers,,engine", map[string]bool{"providers": true, "engine": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	// Save and restore.
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("providers,engine")

	if !Enabled("providers") {
		t.Error("providers should be enabled")
	}
	if !Enabled("engine") {
		t.Error("engine should be enabled")
	}
	if Enabled("mcp") {
		t.Error("mcp should not be enabled")
	}
	if Enabled("all") {
		t.Error("all should not be enabled (not in categories)")
	}
}

func TestEnabled_All(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("all")

	if !Enabled("providers") {
		t.Error("providers should be enabled via 'all'")
	}
	if !Enabled("engine") {
		t.Error("engine should be enabled via 'all'")
	}
	if !Enabled("anything") {
		t.Error("anything should be enabled via 'all'")
	}
}

func TestEnabled_Empty(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	if Enabled("providers") {
		t.Error("nothing should be enabled when no categories set")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q, want %q", got, "short")
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q, want %q", got, "this is a ...")
	}
	if got := Truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("Truncate multibyte = %q, want %q", got, "héllo...")
	}
}

func TestCategoriesSorted(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("storage,engine,auth")
	got := strings.Join(Categories(), ",")
	if got != "auth,engine,storage" {
		t.Errorf("Categories() = %q, want %q", got, "auth,engine,storage")
	}
}

func TestInit_JSONAndTrace(t *testing.T) {
	origCats := categories
	origLogger := slog.Default()
	defer func() {
		categories = origCats
		slog.SetDefault(origLogger)
	}()
	t.Setenv("CHORUS_DEBUG", "")
	t.Setenv("CHORUS_LOG_LEVEL", "")

	var buf bytes.Buffer
	Init(Options{Categories: "providers", Level: "trace", Format: "json", Output: &buf})

	if !TraceIsEnabled("providers") {
		t.Fatal("expected trace to be enabled for providers")
	}
	if TraceIsEnabled("engine") {
		t.Error("engine was not enabled")
	}

	Trace("providers", "body", "size", 3)
	out := buf.String()
	if !strings.Contains(out, `"level":"TRACE"`) {
		t.Errorf("expected TRACE level name in output, got %s", out)
	}
	if !strings.Contains(out, `"debug":"providers"`) {
		t.Errorf("expected category attribute in output, got %s", out)
	}
}

func TestInit_EnvOverridesOptions(t *testing.T) {
	origCats := categories
	origLogger := slog.Default()
	defer func() {
		categories = origCats
		slog.SetDefault(origLogger)
	}()
	t.Setenv("CHORUS_DEBUG", "engine")
	t.Setenv("CHORUS_LOG_LEVEL", "ERROR")

	var buf bytes.Buffer
	Init(Options{Categories: "providers", Level: "debug", Output: &buf})

	if Enabled("providers") || !Enabled("engine") {
		t.Errorf("env categories should win, got %v", Categories())
	}
	slog.Warn("dropped")
	if buf.Len() != 0 {
		t.Errorf("WARN should be filtered at ERROR level, got %q", buf.String())
	}
}

func TestLog_DisabledCategory(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	// Should not panic or produce output.
	Log("providers", "test message", "key", "value")
	Trace("providers", "trace message", "key", "value")
}
