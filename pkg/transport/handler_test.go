package transport

import (
	"context"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
)

func TestQueryHandlerFuncAdapter(t *testing.T) {
	var received *api.QueryRequest
	fn := QueryHandlerFunc(func(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
		received = req
		return &api.QueryResponse{AggregatedResponse: api.AggregatedResponse{RequestID: "r1"}}, nil
	})

	var _ QueryHandler = fn

	req := &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m"}}
	resp, err := fn.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received != req {
		t.Error("expected the request to be passed through")
	}
	if resp.RequestID != "r1" {
		t.Errorf("RequestID = %q", resp.RequestID)
	}
}

func TestListOptionsNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        ListOptions
		def       string
		wantLimit int
		wantOrder string
	}{
		{"defaults", ListOptions{}, "desc", DefaultListLimit, "desc"},
		{"clamped", ListOptions{Limit: 1000, Order: "asc"}, "desc", MaxListLimit, "asc"},
		{"invalid order", ListOptions{Limit: 5, Order: "sideways"}, "asc", 5, "asc"},
		{"negative limit", ListOptions{Limit: -3}, "asc", DefaultListLimit, "asc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize(tt.def)
			if got.Limit != tt.wantLimit || got.Order != tt.wantOrder {
				t.Errorf("Normalize = limit %d order %q, want %d %q", got.Limit, got.Order, tt.wantLimit, tt.wantOrder)
			}
		})
	}
}
