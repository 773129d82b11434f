package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.component)
}

func TestSetDebug(t *testing.T) {
	orig := IsDebugEnabled()
	defer SetDebug(orig)

	SetDebug(true)
	assert.True(t, IsDebugEnabled())

	SetDebug(false)
	assert.False(t, IsDebugEnabled())
}

func TestIsDebugEnabledForDomain(t *testing.T) {
	orig := IsDebugEnabled()
	defer SetDebug(orig)

	SetDebug(false)
	assert.False(t, IsDebugEnabledForDomain("agent"))

	SetDebug(true)
	debugMutex.Lock()
	savedDomains := debugCfg.domains
	debugCfg.domains = map[string]bool{"agent": true}
	debugMutex.Unlock()
	defer func() {
		debugMutex.Lock()
		debugCfg.domains = savedDomains
		debugMutex.Unlock()
	}()

	assert.True(t, IsDebugEnabledForDomain("agent"))
	assert.False(t, IsDebugEnabledForDomain("dispatch"))
}
