package config

import "github.com/spf13/viper"

// ObservabilityConfig controls trace export and logging.
type ObservabilityConfig struct {
	// TracingEnabled turns OTLP trace export on.
	TracingEnabled bool `mapstructure:"tracing_enabled"`

	// OTLPEndpoint is the collector endpoint, host:port.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// ServiceName identifies this process in traces.
	ServiceName string `mapstructure:"service_name"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// LogJSON switches the log handler to JSON output.
	LogJSON bool `mapstructure:"log_json"`
}

func setObservabilityDefaults(v *viper.Viper) {
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.otlp_endpoint", "localhost:4318")
	v.SetDefault("observability.service_name", "rae")
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_json", false)
}
