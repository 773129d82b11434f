// Package logging provides request/response logging middleware for model clients.
package logging

import (
	"context"
	"time"

	"agentexec/pkg/llm"
	"agentexec/pkg/llm/llmerrors"
	"agentexec/pkg/logx"
)

// maxLoggedChars bounds how much prompt/response text is written per log line.
const maxLoggedChars = 600

// Middleware returns a middleware that logs each completion request and its outcome.
// Prompt text is sanitized before logging so large payloads stay readable.
func Middleware(logger *logx.Logger) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if logger != nil && logx.IsDebugEnabled() {
					var lastUser string
					for i := range req.Messages {
						if req.Messages[i].Role == llm.RoleUser {
							lastUser = req.Messages[i].Content
						}
					}
					logger.Debug("completion request: model=%s messages=%d tools=%d prompt=%s",
						next.GetModelName(), len(req.Messages), len(req.Tools),
						llmerrors.SanitizePrompt(lastUser, maxLoggedChars))
				}

				start := time.Now()
				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				if logger != nil {
					if err != nil {
						logger.Warn("completion failed: model=%s type=%s duration=%dms err=%v",
							next.GetModelName(), llmerrors.TypeOf(err).String(), duration.Milliseconds(), err)
					} else {
						logger.Debug("completion done: model=%s stop=%s tool_calls=%d duration=%dms",
							next.GetModelName(), resp.StopReason, len(resp.ToolCalls), duration.Milliseconds())
					}
				}

				return resp, err //nolint:wrapcheck // Middleware passes through errors unchanged
			},
			next.GetModelName,
		)
	}
}
