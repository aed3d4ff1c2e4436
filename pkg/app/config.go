package app

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the application specific configuration.
// It is passed to the App.Init function, and is optional.
type Config map[string]interface{}

// BaseConfig contains the base configuration for services, as well as the
// application itself.
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	ListenAddress      string `mapstructure:"listen_address"`
	DebugListenAddress string `mapstructure:"debug_listen_address"`

	// TLSCertificate is an optional URL that specified a TLS certificate to be
	// used for the HTTP server.
	//
	// Currently only two supported URL schemes are supported: file, s3.
	// If no scheme is specified, file is used.
	TLSCertificate string `mapstructure:"tls_certificate"`
	// TLSKey is an optional URL that specifies a TLS Private Key to be used for the
	// HTTP server.
	TLSKey string `mapstructure:"tls_private_key"`

	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`

	// Ballast for improving Go GC performance. Note that capacity will be
	// limited to 50% of the total memory.
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// Periodically terminate the application when there's a memory leak
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	// Arbitrary configuration that the service can define / implement.
	//
	// Users should use mapstructure.Decode for ServiceConfig.
	AppConfig Config `mapstructure:"app"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",

	AppName: "phonelist-server",

	ListenAddress:      ":8080",
	DebugListenAddress: ":8123",

	ShutdownGracePeriod: 30 * time.Second,

	EnablePprof:  true,
	EnableExpvar: true,

	EnableBallast:   false,
	BallastCapacity: 0.333,

	EnableMemoryLeakCron:   false,
	MemoryLeakCronSchedule: "0 5 * * *",
}

func init() {
	bindEnvs(viper.GetViper())
}

func bindEnvs(v *viper.Viper) {
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	_ = v.BindEnv("app_name", "APP_NAME")

	_ = v.BindEnv("listen_address", "LISTEN_ADDRESS")
	_ = v.BindEnv("debug_listen_address", "DEBUG_LISTEN_ADDRESS")

	_ = v.BindEnv("tls_certificate", "TLS_CERTIFICATE")
	_ = v.BindEnv("tls_private_key", "TLS_PRIVATE_KEY")

	_ = v.BindEnv("shutdown_grace_period", "SHUTDOWN_GRACE_PERIOD")

	_ = v.BindEnv("enable_pprof", "ENABLE_PPROF")
	_ = v.BindEnv("enable_expvar", "ENABLE_EXPVAR")

	_ = v.BindEnv("enable_ballast", "ENABLE_BALLAST")
	_ = v.BindEnv("ballast_capacity", "BALLAST_CAPACITY")

	_ = v.BindEnv("enable_memory_leak_cron", "ENABLE_MEMORY_LEAK_CRON")
	_ = v.BindEnv("memory_leak_cron_schedule", "MEMORY_LEAK_CRON_SCHEDULE")

	_ = v.BindEnv("new_relic_license_key", "NEW_RELIC_LICENSE_KEY")
}

// LoadConfig reads the base configuration from the config file, if it exists,
// and the environment on top of the defaults.
func LoadConfig(path string) (*BaseConfig, error) {
	return loadConfig(viper.GetViper(), path)
}

func loadConfig(v *viper.Viper, path string) (*BaseConfig, error) {
	// viper.ReadInConfig only returns ConfigFileNotFoundError if it has to search
	// for a default config file because one hasn't been explicitly set. That is,
	// if we explicitly set a config file, and it does not exist, viper will not
	// return a ConfigFileNotFoundError, so we do it ourselves.
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to check if config exists")
	}

	err := v.ReadInConfig()
	_, isConfigNotFound := err.(viper.ConfigFileNotFoundError)
	if err != nil && !isConfigNotFound {
		return nil, errors.Wrap(err, "failed to load config")
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if len(config.AppName) == 0 {
		return nil, errors.New("must specify an application name")
	}

	return &config, nil
}
