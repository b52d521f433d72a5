package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:  "expand single env var",
			input: "api_key: ${TEST_API_KEY}",
			envVars: map[string]string{
				"TEST_API_KEY": "test_key_123",
			},
			expected: "api_key: test_key_123",
		},
		{
			name:  "expand multiple env vars",
			input: "api_key: ${API_KEY}\nsecret: ${SECRET_KEY}",
			envVars: map[string]string{
				"API_KEY":    "key_value",
				"SECRET_KEY": "secret_value",
			},
			expected: "api_key: key_value\nsecret: secret_value",
		},
		{
			name:     "missing env var returns empty string",
			input:    "api_key: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "api_key: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			result := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	configContent := `app:
  pair: "BTC/USDT"
  exchange: "bitfinex"

exchange:
  api_key: "${TEST_API_KEY}"
  api_secret: "${TEST_API_SECRET}"
  fee_rate: 0.001

ladder:
  co_is_active: true
  ladder_count: 4
  ladder_price_step_percent: 1.0
  ladder_amount: 0.1
  ladder_amount_coin: "base"

system:
  log_level: "INFO"
`

	_, err = tmpFile.Write([]byte(configContent))
	require.NoError(t, err)
	tmpFile.Close()

	os.Setenv("TEST_API_KEY", "test_api_key_from_env")
	os.Setenv("TEST_API_SECRET", "test_secret_from_env")
	defer os.Unsetenv("TEST_API_KEY")
	defer os.Unsetenv("TEST_API_SECRET")

	cfg, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err, "LoadConfig() error")

	assert.Equal(t, Secret("test_api_key_from_env"), cfg.Exchange.APIKey)
	assert.Equal(t, Secret("test_secret_from_env"), cfg.Exchange.APISecret)
}

func TestValidate_RejectsZeroStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ladder.PriceStepPercent = 0
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_RejectsMissingPair(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.Pair = ""
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_RejectsBadAmountCoin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ladder.AmountCoin = "neither"
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_AcceptsDefault(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_String_RedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exchange.APIKey = Secret("my_super_secret_api_key")
	cfg.Exchange.APISecret = Secret("my_super_secret_value")

	output := cfg.String()

	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, "my_super_secret_api_key")
	assert.NotContains(t, output, "my_super_secret_value")
}
