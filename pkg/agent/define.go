package agent

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"agentexec/pkg/agent/agenterrors"
	"agentexec/pkg/config"
	"agentexec/pkg/logx"
	"agentexec/pkg/metrics"
	"agentexec/pkg/tools"
)

// defaultOutputToolName is used when a definition does not name its output tool.
const defaultOutputToolName = "submit_output"

// Agent is a validated, immutable definition ready for execution. All fields
// are unexported and populated from deep copies, so no caller can observe or
// cause a mutation after Define returns. An Agent is safely shared by many
// concurrent Execute calls.
type Agent[R, A any] struct {
	name        string
	description string
	model       ModelConfig
	prompts     Prompts
	output      OutputTool
	helpers     []HelperTool[R, A]
	helperIndex map[string]int
	validation  Validation
	observe     Observability

	initRun     InitRunFunc[R]
	initAttempt InitAttemptFunc[R, A]
	project     ProjectFunc[R, A]

	outputSchema  *jsonschema.Schema
	helperSchemas map[string]*jsonschema.Schema
	toolDefs      []tools.ToolDefinition

	logger  *logx.Logger
	metrics metrics.Recorder
}

// Name returns the agent's name.
func (a *Agent[R, A]) Name() string { return a.name }

// Description returns the agent's description.
func (a *Agent[R, A]) Description() string { return a.description }

// MaxAttempts returns the configured attempt budget.
func (a *Agent[R, A]) MaxAttempts() int { return a.validation.MaxAttempts }

// Define validates a candidate definition and freezes it into an Agent.
// Every violated construction rule is reported; validation never stops at the
// first problem. On success the returned Agent holds deep copies of all
// nested collections, so later mutation of def cannot affect it.
func Define[R, A any](def Definition[R, A]) (*Agent[R, A], error) {
	var errs agenterrors.ValidationErrors

	if strings.TrimSpace(def.Name) == "" {
		errs = append(errs, agenterrors.NewWithPath(agenterrors.KindEmptyName, "name",
			"agent name must be non-empty"))
	}
	if strings.TrimSpace(def.Description) == "" {
		errs = append(errs, agenterrors.NewWithPath(agenterrors.KindEmptyDescription, "description",
			"agent description must be non-empty"))
	}
	if strings.TrimSpace(def.Model.Name) == "" {
		errs = append(errs, agenterrors.NewWithPath(agenterrors.KindEmptyModelName, "model.name",
			"model name must be non-empty"))
	}
	if def.Validation.OutputSchema == nil {
		errs = append(errs, agenterrors.NewWithPath(agenterrors.KindMissingOutputSchema, "validation.outputSchema",
			"an output schema is required"))
	}
	if def.Validation.MaxAttempts < 1 {
		errs = append(errs, agenterrors.NewWithPath(agenterrors.KindInvalidMaxAttempts, "validation.maxAttempts",
			fmt.Sprintf("maxAttempts must be >= 1, got %d", def.Validation.MaxAttempts)))
	}

	if len(errs) > 0 {
		return nil, errs
	}

	outputSchema, err := tools.CompileSchema(def.Validation.OutputSchema)
	if err != nil {
		errs = append(errs, agenterrors.NewWithPath(agenterrors.KindMissingOutputSchema, "validation.outputSchema",
			fmt.Sprintf("output schema does not compile: %v", err)))
		return nil, errs
	}

	helpers := make([]HelperTool[R, A], len(def.HelperTools))
	helperIndex := make(map[string]int, len(def.HelperTools))
	helperSchemas := make(map[string]*jsonschema.Schema, len(def.HelperTools))
	for i := range def.HelperTools {
		h := def.HelperTools[i]
		if _, dup := helperIndex[h.Name]; dup {
			return nil, fmt.Errorf("helper tool %q: duplicate name", h.Name)
		}
		if h.Name == effectiveOutputName(def.OutputTool.Name) {
			return nil, fmt.Errorf("helper tool %q: name collides with the output tool", h.Name)
		}
		h.InputSchema = h.InputSchema.Clone()
		helpers[i] = h
		helperIndex[h.Name] = i

		compiled, err := tools.CompileSchema(h.InputSchema.JSONMap())
		if err != nil {
			return nil, fmt.Errorf("helper tool %q: input schema does not compile: %w", h.Name, err)
		}
		helperSchemas[h.Name] = compiled
	}

	a := &Agent[R, A]{
		name:        def.Name,
		description: def.Description,
		model:       def.Model,
		prompts:     def.Prompts,
		output:      def.OutputTool,
		helpers:     helpers,
		helperIndex: helperIndex,
		validation:  freezeValidation(def.Validation),
		observe:     def.Observe,
		initRun:     def.InitRun,
		initAttempt: def.InitAttempt,
		project:     def.Project,

		outputSchema:  outputSchema,
		helperSchemas: helperSchemas,

		logger:  logx.NewLogger("agent:" + def.Name),
		metrics: def.Observe.Metrics,
	}
	if a.output.Name == "" {
		a.output.Name = defaultOutputToolName
	}
	if a.validation.MaxToolIterations <= 0 {
		a.validation.MaxToolIterations = config.DefaultMaxToolIterations
	}
	if a.model.MaxTokens <= 0 {
		a.model.MaxTokens = config.DefaultMaxTokens
	}
	if a.metrics == nil {
		a.metrics = metrics.Nop()
	}
	a.toolDefs = a.buildToolDefinitions()

	return a, nil
}

// effectiveOutputName resolves the output tool name helpers must not shadow.
func effectiveOutputName(name string) string {
	if name == "" {
		return defaultOutputToolName
	}
	return name
}

// freezeValidation deep-copies the validation config so the Agent cannot see
// later mutation of the caller's slices or schema document.
func freezeValidation(v Validation) Validation {
	out := Validation{
		OutputSchema:      deepCopyJSONValue(v.OutputSchema),
		MaxAttempts:       v.MaxAttempts,
		MaxToolIterations: v.MaxToolIterations,
	}
	if len(v.Validators) > 0 {
		out.Validators = make([]CustomValidator, len(v.Validators))
		copy(out.Validators, v.Validators)
	}
	return out
}

// buildToolDefinitions assembles the tool list advertised to the backend:
// every helper plus the output tool, whose input schema is the output schema.
func (a *Agent[R, A]) buildToolDefinitions() []tools.ToolDefinition {
	defs := make([]tools.ToolDefinition, 0, len(a.helpers)+1)
	for i := range a.helpers {
		defs = append(defs, tools.ToolDefinition{
			Name:        a.helpers[i].Name,
			Description: a.helpers[i].Description,
			InputSchema: a.helpers[i].InputSchema.Clone(),
		})
	}

	outputDef := tools.ToolDefinition{
		Name:        a.output.Name,
		Description: a.output.Description,
	}
	if outputDef.Description == "" {
		outputDef.Description = "Submit the final structured output for validation."
	}
	if m, ok := deepCopyJSONValue(a.validation.OutputSchema).(map[string]any); ok {
		outputDef.InputSchema = schemaFromJSONMap(m)
	}
	defs = append(defs, outputDef)
	return defs
}

// schemaFromJSONMap converts a raw JSON Schema document into the tool schema
// shape adapters expect. Only the object/properties/required subset needs to
// round-trip; other keywords stay in the compiled validator.
func schemaFromJSONMap(m map[string]any) tools.InputSchema {
	out := tools.InputSchema{Type: "object"}
	if t, ok := m["type"].(string); ok {
		out.Type = t
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	} else if req, ok := m["required"].([]string); ok {
		out.Required = append(out.Required, req...)
	}
	if props, ok := m["properties"].(map[string]any); ok {
		out.Properties = make(map[string]tools.Property, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				out.Properties[name] = propertyFromJSONMap(pm)
			}
		}
	}
	return out
}

func propertyFromJSONMap(m map[string]any) tools.Property {
	p := tools.Property{}
	if t, ok := m["type"].(string); ok {
		p.Type = t
	}
	if d, ok := m["description"].(string); ok {
		p.Description = d
	}
	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				p.Enum = append(p.Enum, s)
			}
		}
	} else if enum, ok := m["enum"].([]string); ok {
		p.Enum = append(p.Enum, enum...)
	}
	if items, ok := m["items"].(map[string]any); ok {
		ip := propertyFromJSONMap(items)
		p.Items = &ip
	}
	if props, ok := m["properties"].(map[string]any); ok {
		p.Properties = make(map[string]*tools.Property, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				np := propertyFromJSONMap(pm)
				p.Properties[name] = &np
			}
		}
	}
	return p
}

// deepCopyJSONValue copies a JSON-shaped value (maps, slices, scalars).
func deepCopyJSONValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = deepCopyJSONValue(val)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i := range tv {
			out[i] = deepCopyJSONValue(tv[i])
		}
		return out
	case []string:
		out := make([]string, len(tv))
		copy(out, tv)
		return out
	default:
		return v
	}
}
