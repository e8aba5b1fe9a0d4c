package api

type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// MetricsPort serves /metrics and /healthz on a separate listener. Zero
	// disables it.
	MetricsPort int    `mapstructure:"metrics-port"`
	Service     string `mapstructure:"service"`
}
