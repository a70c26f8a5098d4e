package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderRegistry_DefensiveCopyOnGetAll(t *testing.T) {
	reg := NewProviderRegistry(map[ProviderID]ProviderConfig{
		ProviderGemini: {Type: "http", APIKeyEnv: "GEMINI_API_KEY"},
	})

	all := reg.GetAll()
	all[ProviderGemini] = ProviderConfig{Type: "mutated"}

	got, err := reg.Get(ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "http", got.Type, "mutating the GetAll result must not affect registry state")
}

func TestProviderRegistry_DefensiveCopyOnConstruct(t *testing.T) {
	src := map[ProviderID]ProviderConfig{
		ProviderGemini: {Type: "http"},
	}
	reg := NewProviderRegistry(src)
	src[ProviderGemini] = ProviderConfig{Type: "mutated"}

	got, err := reg.Get(ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "http", got.Type, "mutating the source map after construction must not affect registry state")
}

func TestProviderRegistry_GetUnknownReturnsError(t *testing.T) {
	reg := NewProviderRegistry(nil)
	_, err := reg.Get(ProviderGemini)
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.False(t, reg.Has(ProviderGemini))
}
