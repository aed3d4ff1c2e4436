package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/code-payments/phonelist-server/pkg/config"
	"github.com/code-payments/phonelist-server/pkg/config/wrapper"
)

type conf struct {
	val string
}

// NewConfig returns a config.Config whose value is the named environment
// variable, captured once at construction time.
func NewConfig(key string) config.Config {
	client := &conf{
		val: os.Getenv(strings.ToUpper(key)),
	}

	return client
}

// Get implements Config.Get
func (c *conf) Get(ctx context.Context) (interface{}, error) {
	if len(strings.TrimSpace(c.val)) == 0 {
		return nil, config.ErrNoValue
	}

	return []byte(c.val), nil
}

// Shutdown implements Config.Shutdown
func (c *conf) Shutdown() {
}

// NewUint64Config creates a env-based uint64 config
func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

// NewFloat64Config creates a env-based float64 config
func NewFloat64Config(key string, defaultValue float64) config.Float64 {
	return wrapper.NewFloat64Config(NewConfig(key), defaultValue)
}

// NewStringConfig creates a env-based string config
func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}

// NewRequiredStringConfig creates a env-based string config without a default.
// An unset or blank environment variable surfaces as config.ErrNoValue.
func NewRequiredStringConfig(key string) config.String {
	return wrapper.NewRequiredStringConfig(NewConfig(key))
}

// NewBoolConfig creates a env-based bool config
func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}

// NewDurationConfig creates a env-based duration config
func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}
