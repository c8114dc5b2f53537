package memcache

import "time"

// Config configures the payload-store side of a MemoryCache.
type Config struct {
	StoreKeyPrefix string `env:"MESSAGE_EXCHANGE_MESSAGE_STORE" env-default:"payload:"`

	// StoreTTL is not part of the enumerated configuration surface; it
	// defaults here and can be overridden programmatically.
	StoreTTL time.Duration
}

// DefaultConfig returns a Config with StoreTTL populated.
func DefaultConfig() Config {
	return Config{StoreTTL: 60 * time.Second}
}
