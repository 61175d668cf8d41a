package instrumentation

// Config holds instrumentation settings.
type Config struct {
	// Enabled controls whether metrics are collected at all. When false the
	// provider is a no-op and Metrics methods do nothing.
	Enabled bool

	// ServiceName appears as the OpenTelemetry service.name resource
	// attribute.
	ServiceName string

	// ServiceVersion appears as the service.version resource attribute.
	ServiceVersion string
}

// DefaultConfig returns the default instrumentation configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		ServiceName:    "yoteibot",
		ServiceVersion: "dev",
	}
}
