package broker

// Config holds the parameters used to open a Client connection, named after
// the fields initialize() takes. The env keys follow the MEMORY_CACHE_*
// family: the Memory Cache façade is the component that actually owns a
// broker connection's configuration in this system.
type Config struct {
	Host      string `env:"MEMORY_CACHE_HOST" env-default:"localhost"`
	Port      string `env:"MEMORY_CACHE_PORT" env-default:"6379"`
	AuthKey   string `env:"MEMORY_CACHE_AUTH_KEY"`
	User      string `env:"MEMORY_CACHE_USER"`
	DefaultDB int    `env:"MEMORY_CACHE_DB" env-default:"0"`

	// Retry tuning is not part of the enumerated configuration surface; it
	// defaults here and can be overridden programmatically by a caller that
	// constructs Config directly instead of loading it from the environment.
	RetryMaxIntervalMs int64
	RetryMaxAttempts   int
}

// DefaultConfig returns a Config with the retry parameters populated; use
// this as the base before config.Load overlays the env-tagged fields.
func DefaultConfig() Config {
	return Config{RetryMaxIntervalMs: 5000, RetryMaxAttempts: 0}
}
