package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/mockbackend"
)

type queryResponse struct {
	api.QueryResponse
}

func TestQueryAllAdapters(t *testing.T) {
	ids := []string{"gemini-mock", "gpt-mock", "claude-mock", "mock/free-model:free"}
	out := query(t, map[string]any{
		"prompt":   "What is the capital of France?",
		"modelIds": ids,
		"persist":  false,
	})

	if out.RequestID == "" {
		t.Error("requestId is empty")
	}
	if len(out.Results) != len(ids) {
		t.Fatalf("got %d results, want %d", len(out.Results), len(ids))
	}
	for i, r := range out.Results {
		if r.ModelID != ids[i] {
			t.Errorf("results[%d].modelId = %q, want %q", i, r.ModelID, ids[i])
		}
		if r.Status != api.OutcomeSuccess {
			t.Errorf("%s: status = %q, error = %+v", r.ModelID, r.Status, r.Error)
			continue
		}
		want := mockbackend.Answer(ids[i], "What is the capital of France?")
		if r.Content != want {
			t.Errorf("%s: content = %q, want %q", r.ModelID, r.Content, want)
		}
	}
	if out.Persistence == nil || out.Persistence.Status != api.PersistSkipped {
		t.Errorf("persistence = %+v, want skipped", out.Persistence)
	}
}

func TestQueryPartialFailure(t *testing.T) {
	out := query(t, map[string]any{
		"prompt":    "[fail] please",
		"modelIds":  []string{"gpt-mock", "locked-model"},
		"timeoutMs": 2000,
		"persist":   false,
	})

	if len(out.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(out.Results))
	}
	if got := out.Results[0].Kind(); got != api.ErrorKindProviderRejected {
		t.Errorf("gpt-mock kind = %q, want ProviderRejected", got)
	}
	if out.Results[0].ProviderStatus != http.StatusInternalServerError {
		t.Errorf("providerStatus = %d, want 500", out.Results[0].ProviderStatus)
	}
	if got := out.Results[1].Kind(); got != api.ErrorKindProviderUnavailable {
		t.Errorf("locked-model kind = %q, want ProviderUnavailable", got)
	}
}

func TestQueryRateLimitedProvider(t *testing.T) {
	out := query(t, map[string]any{
		"prompt":   "[ratelimit]",
		"modelIds": []string{"claude-mock"},
		"persist":  false,
	})
	r := out.Results[0]
	if r.OK() {
		t.Fatal("expected failure")
	}
	if r.ProviderStatus != http.StatusTooManyRequests {
		t.Errorf("providerStatus = %d, want 429", r.ProviderStatus)
	}
}

func TestQueryEmptyAnswerIsFailure(t *testing.T) {
	out := query(t, map[string]any{
		"prompt":   "[empty]",
		"modelIds": []string{"gemini-mock"},
		"persist":  false,
	})
	if got := out.Results[0].Kind(); got != api.ErrorKindProviderRejected {
		t.Errorf("kind = %q, want ProviderRejected", got)
	}
}

func TestQueryDeadline(t *testing.T) {
	out := query(t, map[string]any{
		"prompt":    "[slow]",
		"modelIds":  []string{"gpt-mock", "claude-mock"},
		"timeoutMs": 200,
		"persist":   false,
	})

	for _, r := range out.Results {
		if r.Kind() != api.ErrorKindTimeout {
			t.Errorf("%s: kind = %q, want Timeout", r.ModelID, r.Kind())
		}
	}
	if out.ElapsedMs > 5000 {
		t.Errorf("elapsedMs = %d, the deadline did not cut the request short", out.ElapsedMs)
	}
}

func TestQueryRequestIDPropagation(t *testing.T) {
	const id = "3f2c8a4e-7b1d-4c9e-8f6a-2d5b9e1c7a30"
	req, err := http.NewRequest(http.MethodPost, testEnv.BaseURL()+"/query",
		strings.NewReader(`{"prompt":"hi","modelIds":["gpt-mock"],"persist":false}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", id)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get("X-Request-ID"); got != id {
		t.Errorf("X-Request-ID header = %q, want %q", got, id)
	}
	var out queryResponse
	decodeJSON(t, resp, &out)
	if out.RequestID != id {
		t.Errorf("requestId = %q, want %q", out.RequestID, id)
	}
}

func TestListModels(t *testing.T) {
	var all struct {
		Data []map[string]any `json:"data"`
	}
	decodeJSON(t, getURL(t, testEnv.BaseURL()+"/models"), &all)
	if len(all.Data) != len(testModels) {
		t.Errorf("got %d models, want %d", len(all.Data), len(testModels))
	}

	var free struct {
		Data []map[string]any `json:"data"`
	}
	decodeJSON(t, getURL(t, testEnv.BaseURL()+"/models?free=true"), &free)
	if len(free.Data) != 1 || free.Data[0]["id"] != "mock/free-model:free" {
		t.Errorf("free models = %v", free.Data)
	}
}
