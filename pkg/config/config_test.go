package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelProvider(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		want    string
		wantErr bool
	}{
		{"known claude model", "claude-sonnet-4-5", ProviderAnthropic, false},
		{"known openai model", "gpt-5", ProviderOpenAI, false},
		{"known gemini model", "gemini-2.5-flash", ProviderGoogle, false},
		{"claude prefix inference", "claude-future-9", ProviderAnthropic, false},
		{"gpt prefix inference", "gpt-7-turbo", ProviderOpenAI, false},
		{"ollama prefix inference", "phi4:latest", ProviderOllama, false},
		{"explicit ollama prefix", "ollama:somemodel", ProviderOllama, false},
		{"unmappable model", "totally-made-up", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetModelProvider(tt.model)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetModelInfo(t *testing.T) {
	info, known := GetModelInfo("claude-sonnet-4-5")
	assert.True(t, known)
	assert.Equal(t, ProviderAnthropic, info.Provider)
	assert.Equal(t, 200000, info.MaxContextTokens)

	info, known = GetModelInfo("gemini-x-experimental")
	assert.False(t, known)
	assert.Equal(t, ProviderGoogle, info.Provider)
	assert.Equal(t, 32000, info.MaxContextTokens)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	data := []byte("max_tokens: 1024\nmax_tool_iterations: 25\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, 25, cfg.MaxToolIterations)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().Temperature, cfg.Temperature)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("temperature: 5.0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature")
}
