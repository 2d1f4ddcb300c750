package config

import (
	"fmt"
	"os"
	"strconv"
)

// Built-in LLM defaults. They target an OpenAI-compatible endpoint and sit
// at the bottom of the precedence chain, below environment variables and
// config file values.
const (
	DefaultBaseURL        = "https://api.deepseek.com"
	DefaultModel          = "deepseek-chat"
	DefaultAPIService     = "chat/completions"
	DefaultEmbedService   = "embeddings"
	DefaultFIMService     = "beta/completions"
	DefaultModelsService  = "models"
	DefaultBalanceService = "user/balance"
	DefaultAuthService    = "api/v1/auths/signin"
	DefaultTemperature    = 0.0
	DefaultMaxTokens      = 4000
	DefaultTimeout        = 60
)

// LLMConfig configures the connection to an OpenAI-compatible LLM provider.
type LLMConfig struct {
	// BaseURL is the provider root, e.g. "https://api.deepseek.com".
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Provider root URL,default=https://api.deepseek.com"`

	// APIService is the chat completion endpoint path relative to BaseURL.
	APIService string `yaml:"api_service,omitempty" json:"api_service,omitempty" jsonschema:"title=API Service,description=Chat completion endpoint path,default=chat/completions"`

	// EmbedService is the embeddings endpoint path.
	EmbedService string `yaml:"embed_service,omitempty" json:"embed_service,omitempty" jsonschema:"title=Embed Service,description=Embeddings endpoint path"`

	// FIMService is the fill-in-the-middle completion endpoint path.
	FIMService string `yaml:"fim_service,omitempty" json:"fim_service,omitempty" jsonschema:"title=FIM Service,description=Fill-in-the-middle endpoint path"`

	// ModelsService is the model listing endpoint path.
	ModelsService string `yaml:"models_service,omitempty" json:"models_service,omitempty" jsonschema:"title=Models Service,description=Model listing endpoint path"`

	// BalanceService is the account balance endpoint path.
	BalanceService string `yaml:"balance_service,omitempty" json:"balance_service,omitempty" jsonschema:"title=Balance Service,description=Account balance endpoint path"`

	// AuthService is the signin endpoint used to exchange email/password
	// for a bearer token.
	AuthService string `yaml:"auth_service,omitempty" json:"auth_service,omitempty" jsonschema:"title=Auth Service,description=Credential signin endpoint path"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// Email and Password are exchanged for a token through AuthService
	// when AuthEnabled is set and no APIKey is present.
	Email    string `yaml:"email,omitempty" json:"email,omitempty" jsonschema:"title=Email,description=Signin email"`
	Password string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"title=Password,description=Signin password"`

	// AuthEnabled switches on the signin exchange.
	AuthEnabled bool `yaml:"auth_enabled,omitempty" json:"auth_enabled,omitempty" jsonschema:"title=Auth Enabled,description=Exchange credentials for a token at startup"`

	// Model identifier sent with every request.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier,default=deepseek-chat"`

	// Temperature for generation (0.0 - 2.0).
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=Sampling temperature,minimum=0,maximum=2,default=0"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate,minimum=1,default=4000"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Request timeout in seconds,minimum=1,default=60"`

	// Stream requests server-sent events instead of a single response.
	Stream bool `yaml:"stream,omitempty" json:"stream,omitempty" jsonschema:"title=Stream,description=Stream responses"`
}

// SetDefaults resolves every field through the precedence chain:
// config file value, then environment variable, then built-in default.
// Constructor options outrank all three and are applied by the llm
// package after decoding.
func (c *LLMConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = envString("BATON_BASE_URL", "DEEPSEEK_BASE_URL")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.APIService == "" {
		c.APIService = DefaultAPIService
	}
	if c.EmbedService == "" {
		c.EmbedService = DefaultEmbedService
	}
	if c.FIMService == "" {
		c.FIMService = DefaultFIMService
	}
	if c.ModelsService == "" {
		c.ModelsService = DefaultModelsService
	}
	if c.BalanceService == "" {
		c.BalanceService = DefaultBalanceService
	}
	if c.AuthService == "" {
		c.AuthService = DefaultAuthService
	}
	if c.APIKey == "" {
		c.APIKey = envString("BATON_API_KEY", "DEEPSEEK_API_KEY")
	}
	if c.Email == "" {
		c.Email = os.Getenv("BATON_EMAIL")
	}
	if c.Password == "" {
		c.Password = os.Getenv("BATON_PASSWORD")
	}
	if c.Model == "" {
		c.Model = envString("BATON_MODEL", "DEEPSEEK_MODEL")
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == nil {
		if v := os.Getenv("BATON_TEMPERATURE"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.Temperature = Float64Ptr(f)
			}
		}
	}
	if c.Temperature == nil {
		c.Temperature = Float64Ptr(DefaultTemperature)
	}
	if c.MaxTokens == 0 {
		if v := os.Getenv("BATON_MAX_TOKENS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxTokens = n
			}
		}
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks the LLM configuration after defaulting.
func (c *LLMConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", *c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", c.MaxTokens)
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", c.Timeout)
	}
	if c.AuthEnabled && c.APIKey == "" && (c.Email == "" || c.Password == "") {
		return fmt.Errorf("auth_enabled requires either api_key or email and password")
	}
	return nil
}

// envString returns the first non-empty environment variable among keys.
func envString(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
