package config

// TracingConfig holds OTLP trace export settings.
// Disabled by default; when enabled, spans are exported over OTLP/HTTP.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" json:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" json:"endpoint"` // host:port, no scheme
	ServiceName string  `mapstructure:"service_name" json:"service_name"`
	Environment string  `mapstructure:"environment" json:"environment"`
	SampleRatio float64 `mapstructure:"sample_ratio" json:"sample_ratio"` // 0.0-1.0
}
