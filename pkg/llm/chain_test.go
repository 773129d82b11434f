package llm

import (
	"context"
	"errors"
	"testing"
)

// mockClient is a test double for the Client interface.
type mockClient struct {
	completeFunc     func(context.Context, CompletionRequest) (CompletionResponse, error)
	getModelNameFunc func() string
}

func (m *mockClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return m.completeFunc(ctx, req)
}

func (m *mockClient) GetModelName() string {
	return m.getModelNameFunc()
}

func TestWrapClient(t *testing.T) {
	completeCalled := false
	modelNameCalled := false

	client := WrapClient(
		func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
			completeCalled = true
			return CompletionResponse{Content: "wrapped"}, nil
		},
		func() string {
			modelNameCalled = true
			return "wrapped-model"
		},
	)

	ctx := context.Background()
	req := NewCompletionRequest([]CompletionMessage{NewUserMessage("test")})

	resp, err := client.Complete(ctx, req)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !completeCalled {
		t.Error("Complete function was not called")
	}
	if resp.Content != "wrapped" {
		t.Errorf("expected 'wrapped', got %q", resp.Content)
	}

	modelName := client.GetModelName()
	if !modelNameCalled {
		t.Error("GetModelName function was not called")
	}
	if modelName != "wrapped-model" {
		t.Errorf("expected 'wrapped-model', got %q", modelName)
	}
}

func TestChainSingleMiddleware(t *testing.T) {
	base := &mockClient{
		completeFunc: func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
			return CompletionResponse{Content: "base"}, nil
		},
		getModelNameFunc: func() string {
			return "base-model"
		},
	}

	prefixMiddleware := func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				resp, err := next.Complete(ctx, req)
				if err != nil {
					return resp, err
				}
				resp.Content = "prefix:" + resp.Content
				return resp, nil
			},
			next.GetModelName,
		)
	}

	client := Chain(base, prefixMiddleware)

	resp, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("test")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "prefix:base" {
		t.Errorf("expected 'prefix:base', got %q", resp.Content)
	}
	if client.GetModelName() != "base-model" {
		t.Errorf("expected model name to pass through, got %q", client.GetModelName())
	}
}

func TestChainOrdering(t *testing.T) {
	var order []string

	base := &mockClient{
		completeFunc: func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
			order = append(order, "base")
			return CompletionResponse{}, nil
		},
		getModelNameFunc: func() string { return "m" },
	}

	mw := func(name string) Middleware {
		return func(next Client) Client {
			return WrapClient(
				func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
					order = append(order, name)
					return next.Complete(ctx, req)
				},
				next.GetModelName,
			)
		}
	}

	client := Chain(base, mw("first"), mw("second"), mw("third"))
	if _, err := client.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"first", "second", "third", "base"}
	if len(order) != len(want) {
		t.Fatalf("expected %d calls, got %d (%v)", len(want), len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], order[i])
		}
	}
}

func TestChainNoMiddleware(t *testing.T) {
	base := &mockClient{
		completeFunc: func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
			return CompletionResponse{Content: "untouched"}, nil
		},
		getModelNameFunc: func() string { return "m" },
	}

	client := Chain(base)
	resp, err := client.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "untouched" {
		t.Errorf("expected 'untouched', got %q", resp.Content)
	}
}

func TestChainErrorPropagation(t *testing.T) {
	wantErr := errors.New("backend down")
	base := &mockClient{
		completeFunc: func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
			return CompletionResponse{}, wantErr
		},
		getModelNameFunc: func() string { return "m" },
	}

	passthrough := func(next Client) Client {
		return WrapClient(next.Complete, next.GetModelName)
	}

	client := Chain(base, passthrough, passthrough)
	_, err := client.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected error to propagate through chain, got %v", err)
	}
}
