// Package anthropic implements the llm.Client interface against the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agentexec/pkg/llm"
	"agentexec/pkg/llm/llmerrors"
	"agentexec/pkg/logx"
	"agentexec/pkg/tools"
)

// Client translates completion requests into Anthropic Messages API calls.
// It performs no retries; callers own the retry policy.
type Client struct {
	client sdk.Client
	model  string
	logger *logx.Logger
}

// NewClient creates a Client for the given model using the provided API key.
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key cannot be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model cannot be empty")
	}
	return &Client{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logx.NewLogger("anthropic"),
	}, nil
}

// GetModelName returns the model identifier this client targets.
func (c *Client) GetModelName() string {
	return c.model
}

// Complete issues a non-streaming Messages.New request and translates the
// response into the backend-neutral shape.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "request encoding failed")
	}

	c.logger.Debug("sending completion request: model=%s messages=%d tools=%d", c.model, len(req.Messages), len(req.Tools))

	msg, err := c.client.Messages.New(ctx, *params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if msg == nil || (len(msg.Content) == 0) {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Anthropic API")
	}

	return translateResponse(msg)
}

func (c *Client) buildParams(req llm.CompletionRequest) (*sdk.MessageNewParams, error) {
	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(c.model),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		encoded, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = encoded
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	switch req.ToolChoice {
	case llm.ToolChoiceRequired:
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	case "", llm.ToolChoiceAuto:
		// Default behavior, nothing to set.
	default:
		return nil, fmt.Errorf("unsupported tool choice %q", req.ToolChoice)
	}
	return &params, nil
}

// encodeMessages splits system turns out into system blocks and converts the
// conversation into Anthropic content blocks. Tool turns become user messages
// carrying tool_result blocks, which is the encoding the Messages API expects.
func encodeMessages(msgs []llm.CompletionMessage) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0, 1)

	for i := range msgs {
		m := &msgs[i]
		switch m.Role {
		case llm.RoleSystem:
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
		case llm.RoleUser:
			if m.Content != "" {
				conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
			}
		case llm.RoleAssistant:
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, call := range m.ToolCalls {
				if call.Name == "" {
					return nil, nil, errors.New("assistant tool call missing name")
				}
				blocks = append(blocks, sdk.NewToolUseBlock(call.ID, call.Parameters, call.Name))
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
			}
		case llm.RoleTool:
			blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.ToolResults))
			for _, result := range m.ToolResults {
				blocks = append(blocks, sdk.NewToolResultBlock(result.ToolCallID, result.Content, result.IsError))
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewUserMessage(blocks...))
			}
		default:
			return nil, nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func encodeTools(defs []tools.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	toolList := make([]sdk.ToolUnionParam, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		if def.Name == "" {
			return nil, errors.New("tool definition missing name")
		}
		schema, err := toolInputSchema(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", def.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil && def.Description != "" {
			u.OfTool.Description = sdk.String(def.Description)
		}
		toolList = append(toolList, u)
	}
	return toolList, nil
}

func toolInputSchema(schema tools.InputSchema) (sdk.ToolInputSchemaParam, error) {
	m := schema.JSONMap()
	if m == nil {
		return sdk.ToolInputSchemaParam{}, nil
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateResponse(msg *sdk.Message) (llm.CompletionResponse, error) {
	resp := llm.CompletionResponse{}
	var text strings.Builder
	for i := range msg.Content {
		block := &msg.Content[i]
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			var params map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &params); err != nil {
					return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err,
						fmt.Sprintf("malformed tool_use input for %q", block.Name))
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
				ID:         block.ID,
				Name:       block.Name,
				Parameters: params,
			})
		}
	}
	resp.Content = text.String()
	resp.StopReason = string(msg.StopReason)
	resp.Usage = llm.Usage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	return resp, nil
}

// classifyError maps Anthropic SDK errors to structured error types.
func classifyError(err error) *llmerrors.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request canceled")
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, apiErr.StatusCode, "authentication failed - check API key")
		case 429:
			return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeRateLimit, apiErr.StatusCode, "rate limit exceeded")
		case 400, 413, 422:
			return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeBadPrompt, apiErr.StatusCode, "bad request - check prompt format and parameters")
		case 500, 502, 503, 504, 529:
			return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeTransient, apiErr.StatusCode, "server error")
		}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "connection"),
		strings.Contains(errStr, "eof"),
		strings.Contains(errStr, "reset"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "network or connection error")
	case strings.Contains(errStr, "rate"), strings.Contains(errStr, "quota"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeRateLimit, err, "rate limiting detected")
	case strings.Contains(errStr, "unauthorized"), strings.Contains(errStr, "api key"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "authentication error")
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "unclassified Anthropic API error")
}
