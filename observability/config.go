package observability

import "fmt"

// TracerConfig configures the OpenTelemetry tracer.
type TracerConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g. "localhost:4318").
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// ApplyDefaults fills the endpoint and sample rate of an enabled tracer.
func (c *TracerConfig) ApplyDefaults() {
	if !c.Enabled {
		return
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
}

// Validate checks the tracer configuration.
func (c *TracerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("tracing: sample_rate must be between 0 and 1 (got: %v)", c.SampleRate)
	}
	return nil
}
