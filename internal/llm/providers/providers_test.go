package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/llm"
)

func TestFromConfig(t *testing.T) {
	for _, p := range []string{constants.ProviderOpenAI, constants.ProviderAnthropic, constants.ProviderOllama} {
		c, err := FromConfig(common.LLMConfig{Provider: p, APIKey: "k", Model: "m"}, nil)
		require.NoError(t, err, p)
		assert.Equal(t, p, c.Name())
	}
}

func TestFromConfigRateLimited(t *testing.T) {
	c, err := FromConfig(common.LLMConfig{Provider: constants.ProviderOllama, RateLimit: 2}, nil)
	require.NoError(t, err)
	_, ok := c.(*llm.RateLimited)
	assert.True(t, ok)
}

func TestFromConfigUnknown(t *testing.T) {
	_, err := FromConfig(common.LLMConfig{Provider: "bard"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}
