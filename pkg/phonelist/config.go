package phonelist

import (
	"time"

	"github.com/code-payments/phonelist-server/pkg/config"
	"github.com/code-payments/phonelist-server/pkg/config/env"
	"github.com/code-payments/phonelist-server/pkg/config/memory"
	"github.com/code-payments/phonelist-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "PHONE_LIST_SERVICE_"

	MaxAttemptsConfigEnvName = envConfigPrefix + "MAX_ATTEMPTS"
	defaultMaxAttempts       = 3

	BaseBackoffConfigEnvName = envConfigPrefix + "BASE_BACKOFF"
	defaultBaseBackoff       = 100 * time.Millisecond

	MaxBackoffConfigEnvName = envConfigPrefix + "MAX_BACKOFF"
	defaultMaxBackoff       = time.Second

	MutationTimeoutConfigEnvName = envConfigPrefix + "MUTATION_TIMEOUT"
	defaultMutationTimeout       = 10 * time.Second
)

type conf struct {
	maxAttempts     config.Uint64
	baseBackoff     config.Duration
	maxBackoff      config.Duration
	mutationTimeout config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			maxAttempts:     env.NewUint64Config(MaxAttemptsConfigEnvName, defaultMaxAttempts),
			baseBackoff:     env.NewDurationConfig(BaseBackoffConfigEnvName, defaultBaseBackoff),
			maxBackoff:      env.NewDurationConfig(MaxBackoffConfigEnvName, defaultMaxBackoff),
			mutationTimeout: env.NewDurationConfig(MutationTimeoutConfigEnvName, defaultMutationTimeout),
		}
	}
}

type testOverrides struct {
	maxAttempts     uint64
	baseBackoff     time.Duration
	mutationTimeout time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		maxAttempts := overrides.maxAttempts
		if maxAttempts == 0 {
			maxAttempts = defaultMaxAttempts
		}

		mutationTimeout := overrides.mutationTimeout
		if mutationTimeout == 0 {
			mutationTimeout = defaultMutationTimeout
		}

		return &conf{
			maxAttempts:     wrapper.NewUint64Config(memory.NewConfig(maxAttempts), defaultMaxAttempts),
			baseBackoff:     wrapper.NewDurationConfig(memory.NewConfig(overrides.baseBackoff), defaultBaseBackoff),
			maxBackoff:      wrapper.NewDurationConfig(memory.NewConfig(defaultMaxBackoff), defaultMaxBackoff),
			mutationTimeout: wrapper.NewDurationConfig(memory.NewConfig(mutationTimeout), defaultMutationTimeout),
		}
	}
}
