package config

// MetricsConfig controls Prometheus collection.
type MetricsConfig struct {
	// Disabled skips store metrics and leaves /metrics unmounted.
	Disabled bool `env:"METRICS_DISABLED" yaml:"disabled"`
	// Namespace prefixes every metric name.
	Namespace string `env:"METRICS_NAMESPACE" yaml:"namespace" default:"convostore"`
}
