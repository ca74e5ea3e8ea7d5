package generation

import "fmt"

const (
	DefaultMaxNewTokens = 512
	DefaultTemperature  = 0.7
	DefaultTopP         = 0.95
)

// DecodingConfig controls sampling for one generation.
type DecodingConfig struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
}

func DefaultDecoding() DecodingConfig {
	return DecodingConfig{
		MaxNewTokens: DefaultMaxNewTokens,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
	}
}

// WithDefaults fills zero fields. Explicit values are kept, even invalid ones.
func (c DecodingConfig) WithDefaults() DecodingConfig {
	if c.MaxNewTokens == 0 {
		c.MaxNewTokens = DefaultMaxNewTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.TopP == 0 {
		c.TopP = DefaultTopP
	}
	return c
}

func (c DecodingConfig) Validate() error {
	if c.MaxNewTokens <= 0 {
		return fmt.Errorf("max_new_tokens must be positive, got %d", c.MaxNewTokens)
	}
	if c.Temperature <= 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be in (0,1], got %v", c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be in (0,1], got %v", c.TopP)
	}
	return nil
}
