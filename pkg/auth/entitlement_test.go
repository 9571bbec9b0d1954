package auth

import (
	"context"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/registry"
)

func TestCanUseModel(t *testing.T) {
	paid := registry.ModelDescriptor{ID: "gpt-4o", Provider: "openai"}
	free := registry.ModelDescriptor{ID: "meta-llama/llama-3.3-70b-instruct:free", Provider: "openrouter", IsFree: true}

	tests := []struct {
		name string
		id   *Identity
		desc registry.ModelDescriptor
		want bool
	}{
		{"auth disabled", nil, paid, true},
		{"default tier paid", &Identity{Subject: "a"}, paid, true},
		{"free tier free", &Identity{Subject: "a", ServiceTier: TierFree}, free, true},
		{"free tier paid", &Identity{Subject: "a", ServiceTier: TierFree}, paid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanUseModel(tt.id, tt.desc); got != tt.want {
				t.Errorf("CanUseModel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckModels(t *testing.T) {
	catalog, err := registry.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	freeCtx := SetIdentity(context.Background(), &Identity{Subject: "a", ServiceTier: TierFree})

	if err := CheckModels(freeCtx, catalog, []string{"deepseek/deepseek-r1:free"}); err != nil {
		t.Errorf("free model rejected: %v", err)
	}

	apiErr := CheckModels(freeCtx, catalog, []string{"deepseek/deepseek-r1:free", "gpt-4o", "claude-sonnet-4-5"})
	if apiErr == nil {
		t.Fatal("expected forbidden error")
	}
	if apiErr.Type != api.ErrorTypeForbidden || apiErr.Code != api.CodeModelNotEntitled {
		t.Errorf("err = %+v", apiErr)
	}

	// Unknown ids are not an entitlement problem.
	if err := CheckModels(freeCtx, catalog, []string{"no-such-model"}); err != nil {
		t.Errorf("unknown model: %v", err)
	}
	if err := CheckModels(context.Background(), catalog, []string{"gpt-4o"}); err != nil {
		t.Errorf("no identity: %v", err)
	}
}
