// Command agentexec runs a demonstration extraction agent against a
// configured model backend. It is the minimal end-to-end wiring of the
// engine: config, client factory, metrics, and an agent definition with a
// helper tool and a custom validator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentexec/pkg/agent"
	"agentexec/pkg/config"
	"agentexec/pkg/llm/factory"
	llmmetrics "agentexec/pkg/llm/middleware/metrics"
	"agentexec/pkg/logx"
	"agentexec/pkg/metrics"
	"agentexec/pkg/tools"
)

type demoRun struct {
	Keywords []string `json:"keywords"`
}

type demoAttempt struct {
	Attempt int `json:"attempt"`
}

func main() {
	var (
		configPath  string
		modelName   string
		inputText   string
		maxAttempts int
		verbose     bool
		metricsAddr string
	)

	flag.StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&modelName, "model", "claude-sonnet-4-20250514", "Model to drive")
	flag.StringVar(&inputText, "input", "", "Text to summarize (reads stdin when empty)")
	flag.IntVar(&maxAttempts, "max-attempts", 3, "Attempt budget")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	if verbose {
		logx.SetDebug(true)
	}
	logger := logx.NewLogger("agentexec")

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("metrics listening on %s", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics server: %v", err)
			}
		}()
	}

	if inputText == "" {
		data, err := readStdin()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		inputText = data
	}
	if strings.TrimSpace(inputText) == "" {
		fmt.Fprintln(os.Stderr, "Error: no input text provided")
		os.Exit(1)
	}

	f := factory.New(cfg, llmmetrics.NewPrometheusRecorder(reg))
	client, err := f.NewClient(modelName, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	a, err := buildSummaryAgent(modelName, maxAttempts, cfg, metrics.NewPrometheusRecorder(reg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := a.Execute(ctx, agent.ExecuteOptions{
		Input:  inputText,
		Client: client,
		Callbacks: &agent.Callbacks{
			OnAttemptStart: func(attempt, max int) {
				logger.Info("attempt %d/%d", attempt, max)
			},
			OnToolCall: func(name string, _ map[string]any) {
				logger.Debug("tool call: %s", name)
			},
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Execution failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(map[string]any{
		"output":      res.Output,
		"attempts":    res.Attempts,
		"model_calls": res.Metadata.ModelCalls,
		"tokens": map[string]int{
			"input":  res.Metadata.Usage.InputTokens,
			"output": res.Metadata.Usage.OutputTokens,
		},
		"keywords_noted": res.StateProjection,
	}, "", "  ")
	fmt.Println(string(out))
}

// buildSummaryAgent defines a small summarization agent: a helper tool for
// noting salient keywords into run state, a schema-validated output, and a
// length validator that forces a retry on one-line summaries.
func buildSummaryAgent(modelName string, maxAttempts int, cfg config.Config, rec metrics.Recorder) (*agent.Agent[demoRun, demoAttempt], error) {
	return agent.Define(agent.Definition[demoRun, demoAttempt]{
		Name:        "summarizer",
		Description: "Produces a structured summary of a text",
		Model: agent.ModelConfig{
			Name:        modelName,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		},
		Prompts: agent.Prompts{
			System: func(_ context.Context, _ any, _ agent.ExecutionContext) (string, error) {
				return "You summarize documents. Note salient keywords with the note_keyword tool, " +
					"then submit a summary with the output tool.", nil
			},
			User: func(_ context.Context, input any) (string, error) {
				return fmt.Sprintf("Summarize the following text:\n\n%v", input), nil
			},
		},
		HelperTools: []agent.HelperTool[demoRun, demoAttempt]{
			{
				Name:        "note_keyword",
				Description: "Records a salient keyword from the text",
				InputSchema: tools.InputSchema{
					Type: "object",
					Properties: map[string]tools.Property{
						"keyword": {Type: "string", Description: "A single salient keyword"},
					},
					Required: []string{"keyword"},
				},
				Handler: func(st agent.State[demoRun, demoAttempt], input map[string]any) (*agent.Reduction[demoRun, demoAttempt], error) {
					kw, _ := input["keyword"].(string)
					if kw == "" {
						return nil, fmt.Errorf("keyword must be non-empty")
					}
					st.Run.Keywords = append(st.Run.Keywords, kw)
					return &agent.Reduction[demoRun, demoAttempt]{
						Run:        st.Run,
						Attempt:    st.Attempt,
						ToolResult: fmt.Sprintf("noted %q (%d total)", kw, len(st.Run.Keywords)),
					}, nil
				},
			},
		},
		Validation: agent.Validation{
			OutputSchema: map[string]any{
				"type":     "object",
				"required": []any{"summary"},
				"properties": map[string]any{
					"summary": map[string]any{"type": "string"},
				},
			},
			Validators: []agent.CustomValidator{
				{
					Name: "substantive_summary",
					Validate: func(output map[string]any) error {
						s, _ := output["summary"].(string)
						if len(strings.Fields(s)) < 10 {
							return fmt.Errorf("summary must be at least 10 words, got %d", len(strings.Fields(s)))
						}
						return nil
					},
				},
			},
			MaxAttempts:       maxAttempts,
			MaxToolIterations: cfg.MaxToolIterations,
		},
		InitAttempt: func(_ any, _ demoRun, ec agent.ExecutionContext) demoAttempt {
			return demoAttempt{Attempt: ec.Attempt}
		},
		Project: func(st agent.State[demoRun, demoAttempt]) (any, error) {
			return len(st.Run.Keywords), nil
		},
		Observe: agent.Observability{Metrics: rec},
	})
}

func readStdin() (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, rerr := os.Stdin.Read(buf)
		sb.Write(buf[:n])
		if rerr != nil {
			break
		}
	}
	return sb.String(), nil
}
