package wrapper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/phonelist-server/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

// Parser converts a raw value from a config.Config into T. Raw values are
// typically []byte when sourced from the environment, or a native T when
// sourced from memory.
type Parser[T any] func(raw interface{}) (T, error)

// ValueConfig is a utility wrapper that adds typing, defaults and last known
// value semantics on top of a config.Config
type ValueConfig[T any] struct {
	override     config.Config
	defaultValue T
	required     bool
	parse        Parser[T]

	stateMu   sync.RWMutex
	lastValue T
}

// NewValueConfig returns a new typed config utility wrapper. The default value
// is used whenever the override has no value.
func NewValueConfig[T any](override config.Config, defaultValue T, parse Parser[T]) *ValueConfig[T] {
	return &ValueConfig[T]{
		override:     override,
		defaultValue: defaultValue,
		parse:        parse,
		lastValue:    defaultValue,
	}
}

// NewRequiredValueConfig returns a new typed config utility wrapper that has no
// default. GetSafe returns config.ErrNoValue when the override has no value.
func NewRequiredValueConfig[T any](override config.Config, parse Parser[T]) *ValueConfig[T] {
	var zero T
	c := NewValueConfig(override, zero, parse)
	c.required = true
	return c
}

// GetSafe gets a config value and propagates any errors that arise. A best-effort
// attempt is made to return the last known value
func (c *ValueConfig[T]) GetSafe(ctx context.Context) (T, error) {
	override, err := c.override.Get(ctx)
	c.stateMu.RLock()
	lastValue := c.lastValue
	c.stateMu.RUnlock()
	if err == config.ErrNoValue {
		c.stateMu.Lock()
		c.lastValue = c.defaultValue
		c.stateMu.Unlock()
		if c.required {
			return c.defaultValue, config.ErrNoValue
		}
		return c.defaultValue, nil
	} else if err != nil {
		return lastValue, err
	}

	newValue, err := c.parse(override)
	if err != nil {
		return lastValue, err
	}
	c.stateMu.Lock()
	c.lastValue = newValue
	c.stateMu.Unlock()
	return newValue, nil
}

// Get is a wrapper for GetSafe that ignores the returned error
func (c *ValueConfig[T]) Get(ctx context.Context) T {
	val, _ := c.GetSafe(ctx)
	return val
}

// Shutdown signals the config to stop all underlying resources
func (c *ValueConfig[T]) Shutdown() {
	c.override.Shutdown()
}

// NewBoolConfig returns a new bool config utility wrapper
func NewBoolConfig(override config.Config, defaultValue bool) config.Bool {
	return NewValueConfig(override, defaultValue, ParseBool)
}

// NewUint64Config returns a new uint64 config utility wrapper
func NewUint64Config(override config.Config, defaultValue uint64) config.Uint64 {
	return NewValueConfig(override, defaultValue, ParseUint64)
}

// NewFloat64Config returns a new float64 config utility wrapper
func NewFloat64Config(override config.Config, defaultValue float64) config.Float64 {
	return NewValueConfig(override, defaultValue, ParseFloat64)
}

// NewStringConfig returns a new string config utility wrapper
func NewStringConfig(override config.Config, defaultValue string) config.String {
	return NewValueConfig(override, defaultValue, ParseString)
}

// NewRequiredStringConfig returns a new string config utility wrapper that
// reports config.ErrNoValue instead of falling back to a default
func NewRequiredStringConfig(override config.Config) config.String {
	return NewRequiredValueConfig(override, ParseString)
}

// NewDurationConfig returns a new duration config utility wrapper
func NewDurationConfig(override config.Config, defaultValue time.Duration) config.Duration {
	return NewValueConfig(override, defaultValue, ParseDuration)
}

// ParseBool implements Parser for bool values
func ParseBool(raw interface{}) (bool, error) {
	switch typed := raw.(type) {
	case []byte:
		return strconv.ParseBool(string(typed))
	case bool:
		return typed, nil
	default:
		return false, ErrUnsuportedConversion
	}
}

// ParseUint64 implements Parser for uint64 values
func ParseUint64(raw interface{}) (uint64, error) {
	switch typed := raw.(type) {
	case []byte:
		return strconv.ParseUint(string(typed), 10, 64)
	case uint64:
		return typed, nil
	case uint:
		return uint64(typed), nil
	default:
		return 0, ErrUnsuportedConversion
	}
}

// ParseFloat64 implements Parser for float64 values
func ParseFloat64(raw interface{}) (float64, error) {
	switch typed := raw.(type) {
	case []byte:
		return strconv.ParseFloat(string(typed), 64)
	case float64:
		return typed, nil
	default:
		return 0, ErrUnsuportedConversion
	}
}

// ParseString implements Parser for string values
func ParseString(raw interface{}) (string, error) {
	switch typed := raw.(type) {
	case []byte:
		return string(typed), nil
	case string:
		return typed, nil
	default:
		return "", ErrUnsuportedConversion
	}
}

// ParseDuration implements Parser for time.Duration values
func ParseDuration(raw interface{}) (time.Duration, error) {
	switch typed := raw.(type) {
	case []byte:
		return time.ParseDuration(string(typed))
	case time.Duration:
		return typed, nil
	default:
		return 0, ErrUnsuportedConversion
	}
}
