package instance

import (
	"time"

	"github.com/chris-alexander-pop/ti-engine/pkg/broker"
	"github.com/chris-alexander-pop/ti-engine/pkg/exchange"
	"github.com/chris-alexander-pop/ti-engine/pkg/memcache"
	"github.com/chris-alexander-pop/ti-engine/pkg/msghandler"
)

// Class is what role an instance plays in the messaging core.
type Class string

const (
	ClassConsumer Class = "consumer"
	ClassProvider Class = "provider"
	ClassBoth     Class = "both"
)

// Config is the full environment-driven configuration surface of an
// instance, assembled from the enumerated configuration keys in the
// external interfaces.
type Config struct {
	InstanceID     string `env:"TI_INSTANCE_ID"`
	InstanceName   string `env:"TI_INSTANCE_NAME"`
	InstanceClass  Class  `env:"TI_INSTANCE_CLASS" env-default:"both"`
	InstanceConfig string `env:"TI_INSTANCE_CONFIG"`

	// ServiceDomainName reuses TI_INSTANCE_NAME: the enumerated configuration
	// surface names no separate domain variable, and an instance's name and
	// the service domain it belongs to are the same value in this design.
	ServiceDomainName         string `env:"TI_INSTANCE_NAME"`
	ServiceRegistryAddress    string `env:"SERVICE_REGISTRY_ADDRESS" env-default:"registry:"`
	ServiceExecutionTimeoutMs int64  `env:"SERVICE_EXECUTION_TIMEOUT" env-default:"15000"`

	AuditingLogMinLevel string `env:"AUDITING_LOG_MIN_LEVEL" env-default:"INFO"`

	Broker   broker.Config
	Exchange exchange.Config
	MemCache memcache.Config
	Handler  msghandler.HandlerConfig
}

func (c *Config) executionTimeout() time.Duration {
	return time.Duration(c.ServiceExecutionTimeoutMs) * time.Millisecond
}
