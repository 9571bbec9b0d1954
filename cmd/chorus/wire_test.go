package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/config"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/registry"
	"github.com/rhuss/chorus/pkg/storage/memory"
	"github.com/rhuss/chorus/pkg/storage/sqlite"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeChat is an OpenAI-compatible backend that answers "echo: <prompt>",
// or 500 when the prompt contains [fail].
func fakeChat(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		prompt := req.Messages[0].Content
		if strings.Contains(prompt, "[fail]") {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"backend exploded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"role": "assistant", "content": req.Model + " echo: " + prompt},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, backendURL string) string {
	t.Helper()
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", `
models:
  - id: local-a
    provider: local
  - id: local-b
    provider: local
  - id: remote-x
    provider: nokey
`)
	return writeFile(t, dir, "config.yaml", `
catalog:
  path: `+catalog+`
providers:
  - name: local
    type: openai
    base_url: `+backendURL+`
    api_key: test-key
  - name: nokey
    type: anthropic
    api_key_env: CHORUS_TEST_UNSET_KEY
`)
}

func loaderFor(path string) configLoader {
	return func() (*config.Config, error) { return config.Load(path) }
}

func TestBuildProviders(t *testing.T) {
	t.Setenv("CHORUS_TEST_UNSET_KEY", "")
	cfg, err := config.Load(testConfig(t, "http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	catalog, err := buildCatalog(cfg)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	set, err := buildProviders(cfg, catalog)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if got := strings.Join(set.Names(), ","); got != "local,nokey" {
		t.Errorf("providers = %s", got)
	}

	nokey, _ := set.Lookup("nokey")
	_, err = nokey.Invoke(context.Background(), &provider.Invocation{ModelID: "remote-x", Prompt: "hi"})
	if kind, _, _ := provider.Classify(err); kind != api.ErrorKindProviderUnavailable {
		t.Errorf("missing credential kind = %q, want ProviderUnavailable", kind)
	}
}

func TestBuildProvidersUnconfigured(t *testing.T) {
	cfg := config.Defaults()
	cfg.Providers = nil
	catalog, err := registry.New([]registry.ModelDescriptor{{ID: "m", Provider: "ghost"}})
	if err != nil {
		t.Fatal(err)
	}

	set, err := buildProviders(&cfg, catalog)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if _, ok := set.Lookup("ghost"); !ok {
		t.Error("unconfigured provider should still get an adapter")
	}
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	cfg := config.Defaults()
	store, err := buildStore(ctx, &cfg)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("memory store type = %T", store)
	}

	cfg.Storage.Type = "sqlite"
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "chorus.db")
	store, err = buildStore(ctx, &cfg)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*sqlite.Store); !ok {
		t.Errorf("sqlite store type = %T", store)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("sqlite health: %v", err)
	}
}

func TestBuildAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name   string
		modify func(*config.Config)
		header string
		want   int
	}{
		{"none accepts anonymous", func(c *config.Config) {}, "", http.StatusNoContent},
		{"apikey rejects missing key", func(c *config.Config) {
			c.Auth.Type = "apikey"
			c.Auth.APIKeys = []config.APIKeyConfig{{Key: "sk-1", Subject: "alice"}}
		}, "", http.StatusUnauthorized},
		{"apikey accepts known key", func(c *config.Config) {
			c.Auth.Type = "apikey"
			c.Auth.APIKeys = []config.APIKeyConfig{{Key: "sk-1", Subject: "alice"}}
		}, "Bearer sk-1", http.StatusNoContent},
		{"jwt rejects garbage token", func(c *config.Config) {
			c.Auth.Type = "jwt"
			c.Auth.JWT.JWKSURL = "http://127.0.0.1:1/jwks"
		}, "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.modify(&cfg)
			protect, err := buildAuth(&cfg)
			if err != nil {
				t.Fatalf("buildAuth: %v", err)
			}

			req := httptest.NewRequest(http.MethodGet, "/models", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protect(ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBuildAuthRateLimit(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.RateLimit.Tiers = map[string]config.TierLimit{"default": {RequestsPerMinute: 1, Burst: 1}}
	protect, err := buildAuth(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	h := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestRunQuery(t *testing.T) {
	t.Setenv("CHORUS_TEST_UNSET_KEY", "")
	backend := fakeChat(t)
	load := loaderFor(testConfig(t, backend.URL))

	var out bytes.Buffer
	err := runQuery(context.Background(), load, queryOptions{models: []string{"local-b", "remote-x", "local-a"}}, "hello", &out)
	if err != nil {
		t.Fatalf("runQuery: %v", err)
	}

	text := out.String()
	b := strings.Index(text, "== local-b ==")
	x := strings.Index(text, "== remote-x ==")
	a := strings.Index(text, "== local-a ==")
	if b < 0 || x < 0 || a < 0 || !(b < x && x < a) {
		t.Errorf("outcomes not in request order:\n%s", text)
	}
	for _, want := range []string{"local-b echo: hello", "ProviderUnavailable", "2 of 3 succeeded"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	// The summary table has a header and one row per model in request order.
	lines := strings.Split(text, "\n")
	if f := strings.Fields(lines[0]); len(f) != 3 || f[0] != "MODEL" || f[2] != "LATENCY" {
		t.Errorf("table header = %q", lines[0])
	}
	for i, want := range [][2]string{{"local-b", "success"}, {"remote-x", "ProviderUnavailable"}, {"local-a", "success"}} {
		f := strings.Fields(lines[i+1])
		if len(f) != 3 || f[0] != want[0] || f[1] != want[1] || !strings.HasSuffix(f[2], "ms") {
			t.Errorf("table row %d = %q, want %s %s", i, lines[i+1], want[0], want[1])
		}
	}
}

func TestRunQueryJSON(t *testing.T) {
	t.Setenv("CHORUS_TEST_UNSET_KEY", "")
	backend := fakeChat(t)
	load := loaderFor(testConfig(t, backend.URL))

	var out bytes.Buffer
	opts := queryOptions{models: []string{"local-a", "local-b"}, json: true}
	if err := runQuery(context.Background(), load, opts, "[fail] please", &out); err != nil {
		t.Fatalf("runQuery: %v", err)
	}

	var resp api.AggregatedResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d", len(resp.Results))
	}
	for _, o := range resp.Results {
		if o.Kind() != api.ErrorKindProviderRejected || o.ProviderStatus != 500 {
			t.Errorf("%s outcome = %+v", o.ModelID, o.Error)
		}
	}
}

func TestRunQueryAllFailed(t *testing.T) {
	t.Setenv("CHORUS_TEST_UNSET_KEY", "")
	backend := fakeChat(t)
	load := loaderFor(testConfig(t, backend.URL))

	var out bytes.Buffer
	err := runQuery(context.Background(), load, queryOptions{models: []string{"local-a"}}, "[fail]", &out)
	if err == nil || !strings.Contains(err.Error(), "all 1 models failed") {
		t.Errorf("err = %v", err)
	}
}

func TestRunQueryUnknownModel(t *testing.T) {
	backend := fakeChat(t)
	load := loaderFor(testConfig(t, backend.URL))

	err := runQuery(context.Background(), load, queryOptions{models: []string{"nope"}}, "hi", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Errorf("err = %v, want unknown model", err)
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "gitVersion: dev") {
		t.Errorf("version output = %q", out.String())
	}

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "query", "models", "version"} {
		if !names[want] {
			t.Errorf("missing subcommand %s", want)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{"text", func(t *testing.T, out string) {
			for _, want := range []string{"gitVersion: dev", "gitCommit:", "goVersion:", "platform:"} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		}},
		{"json", func(t *testing.T, out string) {
			var info map[string]string
			if err := json.Unmarshal([]byte(out), &info); err != nil {
				t.Fatalf("invalid JSON %q: %v", out, err)
			}
			if info["gitVersion"] != "dev" || info["platform"] == "" {
				t.Errorf("info = %v", info)
			}
		}},
		{"short", func(t *testing.T, out string) {
			if out != "dev\n" {
				t.Errorf("output = %q, want dev", out)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cmd := newVersionCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"-o", tt.format})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("version -o %s: %v", tt.format, err)
			}
			tt.check(t, out.String())
		})
	}

	cmd := newVersionCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-o", "yaml"})
	if err := cmd.Execute(); err == nil {
		t.Error("unknown output format accepted")
	}
}

func TestModelsTable(t *testing.T) {
	load := loaderFor(testConfig(t, "http://127.0.0.1:1"))

	cmd := newModelsCmd(load)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("models: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header and 3 rows:\n%s", len(lines), out.String())
	}
	if f := strings.Fields(lines[0]); len(f) != 5 || f[0] != "ID" || f[4] != "LABEL" {
		t.Errorf("header = %q", lines[0])
	}
	for i, want := range [][2]string{{"local-a", "local"}, {"local-b", "local"}, {"remote-x", "nokey"}} {
		f := strings.Fields(lines[i+1])
		if len(f) < 3 || f[0] != want[0] || f[1] != want[1] || f[2] != "false" {
			t.Errorf("row %d = %q, want %s %s false", i, lines[i+1], want[0], want[1])
		}
	}
	// Columns line up: every row starts its PROVIDER cell at the same offset.
	col := strings.Index(lines[0], "PROVIDER")
	for _, l := range lines[1:] {
		if !strings.HasPrefix(l[col:], "local") && !strings.HasPrefix(l[col:], "nokey") {
			t.Errorf("misaligned row %q", l)
		}
	}
}
