package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/phonelist-server/pkg/config"
)

var errDeveloperInduced = errors.New("in memory config: developer induced error")

// Config is an in memory config used for testing
type Config struct {
	stateMu  sync.RWMutex
	value    interface{}
	err      error
	shutdown bool
}

// NewConfig returns a new in memory config. Use an initial nil value to indicate
// no value is set
func NewConfig(value interface{}) *Config {
	return &Config{
		value: value,
	}
}

// Get implements Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.err != nil:
		return nil, c.err
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

// Shutdown implements Config.Shutdown
func (c *Config) Shutdown() {
	c.stateMu.Lock()
	c.shutdown = true
	c.stateMu.Unlock()
}

// SetValue sets the value that should be returned on subsequent Get calls
func (c *Config) SetValue(value interface{}) {
	c.stateMu.Lock()
	c.value = value
	c.stateMu.Unlock()
}

// ClearValue sets up the config as if no value has been set, resulting in
// ErrNoValue being returned on subsequent Get Calls
func (c *Config) ClearValue() {
	c.SetValue(nil)
}

// InduceErrors instructs the config to simulate an error getting a config value
func (c *Config) InduceErrors() {
	c.stateMu.Lock()
	c.err = errDeveloperInduced
	c.stateMu.Unlock()
}

// StopInducingErrors stops the config from simulating an error getting a config value
func (c *Config) StopInducingErrors() {
	c.stateMu.Lock()
	c.err = nil
	c.stateMu.Unlock()
}

// Source is a keyed set of in memory configs, mirroring how env configs are
// looked up by name. Configs handed out by a Source observe later Set and
// Clear calls for their key.
type Source struct {
	mu      sync.Mutex
	configs map[string]*Config
}

// NewSource returns a Source seeded with the provided values
func NewSource(values map[string]interface{}) *Source {
	s := &Source{
		configs: make(map[string]*Config),
	}
	for k, v := range values {
		s.Config(k).SetValue(v)
	}
	return s
}

// Config returns the config for the provided key, creating an unset one if
// necessary
func (s *Source) Config(key string) *Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.configs[key]
	if !ok {
		c = NewConfig(nil)
		s.configs[key] = c
	}
	return c
}

// Set sets the value for the provided key
func (s *Source) Set(key string, value interface{}) {
	s.Config(key).SetValue(value)
}

// Clear unsets the value for the provided key
func (s *Source) Clear(key string) {
	s.Config(key).ClearValue()
}
