package main

import (
	"strings"
	"time"

	"github.com/code-payments/phonelist-server/pkg/config"
	"github.com/code-payments/phonelist-server/pkg/config/env"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document/etcd"
)

const (
	StoreDriverConfigEnvName = "DOCUMENT_STORE_DRIVER"
	defaultStoreDriver       = driverGithub

	EtcdEndpointsConfigEnvName = "ETCD_ENDPOINTS"
	defaultEtcdEndpoints       = "localhost:2379"

	EtcdKeyPrefixConfigEnvName = "ETCD_KEY_PREFIX"
	defaultEtcdKeyPrefix       = etcd.DefaultKeyPrefix

	EtcdDialTimeoutConfigEnvName = "ETCD_DIAL_TIMEOUT"
	defaultEtcdDialTimeout       = 5 * time.Second

	S3BucketConfigEnvName          = "S3_BUCKET"
	S3RegionConfigEnvName          = "S3_REGION"
	S3EndpointConfigEnvName        = "S3_ENDPOINT"
	S3AccessKeyIdConfigEnvName     = "S3_ACCESS_KEY_ID"
	S3SecretAccessKeyConfigEnvName = "S3_SECRET_ACCESS_KEY"
	S3PathStyleConfigEnvName       = "S3_PATH_STYLE"

	PostgresHostConfigEnvName         = "POSTGRES_HOST"
	PostgresPortConfigEnvName         = "POSTGRES_PORT"
	defaultPostgresPort               = 5432
	PostgresUserConfigEnvName         = "POSTGRES_USER"
	PostgresPasswordConfigEnvName     = "POSTGRES_PASSWORD"
	PostgresDbNameConfigEnvName       = "POSTGRES_DB_NAME"
	PostgresSslModeConfigEnvName      = "POSTGRES_SSL_MODE"
	defaultPostgresSslMode            = "disable"
	PostgresMaxOpenConnsConfigEnvName = "POSTGRES_MAX_OPEN_CONNECTIONS"
	defaultPostgresMaxOpenConns       = 10
	PostgresMaxIdleConnsConfigEnvName = "POSTGRES_MAX_IDLE_CONNECTIONS"
	defaultPostgresMaxIdleConns       = 5
	PostgresAutoMigrateConfigEnvName  = "POSTGRES_AUTO_MIGRATE"
	defaultPostgresAutoMigrate        = true

	SqlitePathConfigEnvName = "SQLITE_PATH"
	defaultSqlitePath       = "phonelist.db"

	RateLimitPerSecondConfigEnvName = "RATE_LIMIT_PER_SECOND"
	defaultRateLimitPerSecond       = 0

	RateLimitBurstConfigEnvName = "RATE_LIMIT_BURST"
	defaultRateLimitBurst       = 0

	TrustProxyHeadersConfigEnvName = "TRUST_PROXY_HEADERS"
	defaultTrustProxyHeaders       = false
)

type conf struct {
	storeDriver config.String

	etcdEndpoints   config.String
	etcdKeyPrefix   config.String
	etcdDialTimeout config.Duration

	s3Bucket          config.String
	s3Region          config.String
	s3Endpoint        config.String
	s3AccessKeyId     config.String
	s3SecretAccessKey config.String
	s3PathStyle       config.Bool

	postgresHost         config.String
	postgresPort         config.Uint64
	postgresUser         config.String
	postgresPassword     config.String
	postgresDbName       config.String
	postgresSslMode      config.String
	postgresMaxOpenConns config.Uint64
	postgresMaxIdleConns config.Uint64
	postgresAutoMigrate  config.Bool

	sqlitePath config.String

	rateLimitPerSecond config.Float64
	rateLimitBurst     config.Uint64

	trustProxyHeaders config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			storeDriver: env.NewStringConfig(StoreDriverConfigEnvName, defaultStoreDriver),

			etcdEndpoints:   env.NewStringConfig(EtcdEndpointsConfigEnvName, defaultEtcdEndpoints),
			etcdKeyPrefix:   env.NewStringConfig(EtcdKeyPrefixConfigEnvName, defaultEtcdKeyPrefix),
			etcdDialTimeout: env.NewDurationConfig(EtcdDialTimeoutConfigEnvName, defaultEtcdDialTimeout),

			s3Bucket:          env.NewStringConfig(S3BucketConfigEnvName, ""),
			s3Region:          env.NewStringConfig(S3RegionConfigEnvName, ""),
			s3Endpoint:        env.NewStringConfig(S3EndpointConfigEnvName, ""),
			s3AccessKeyId:     env.NewStringConfig(S3AccessKeyIdConfigEnvName, ""),
			s3SecretAccessKey: env.NewStringConfig(S3SecretAccessKeyConfigEnvName, ""),
			s3PathStyle:       env.NewBoolConfig(S3PathStyleConfigEnvName, false),

			postgresHost:         env.NewStringConfig(PostgresHostConfigEnvName, ""),
			postgresPort:         env.NewUint64Config(PostgresPortConfigEnvName, defaultPostgresPort),
			postgresUser:         env.NewStringConfig(PostgresUserConfigEnvName, ""),
			postgresPassword:     env.NewStringConfig(PostgresPasswordConfigEnvName, ""),
			postgresDbName:       env.NewStringConfig(PostgresDbNameConfigEnvName, ""),
			postgresSslMode:      env.NewStringConfig(PostgresSslModeConfigEnvName, defaultPostgresSslMode),
			postgresMaxOpenConns: env.NewUint64Config(PostgresMaxOpenConnsConfigEnvName, defaultPostgresMaxOpenConns),
			postgresMaxIdleConns: env.NewUint64Config(PostgresMaxIdleConnsConfigEnvName, defaultPostgresMaxIdleConns),
			postgresAutoMigrate:  env.NewBoolConfig(PostgresAutoMigrateConfigEnvName, defaultPostgresAutoMigrate),

			sqlitePath: env.NewStringConfig(SqlitePathConfigEnvName, defaultSqlitePath),

			rateLimitPerSecond: env.NewFloat64Config(RateLimitPerSecondConfigEnvName, defaultRateLimitPerSecond),
			rateLimitBurst:     env.NewUint64Config(RateLimitBurstConfigEnvName, defaultRateLimitBurst),

			trustProxyHeaders: env.NewBoolConfig(TrustProxyHeadersConfigEnvName, defaultTrustProxyHeaders),
		}
	}
}

func splitEndpoints(raw string) []string {
	var endpoints []string
	for _, endpoint := range strings.Split(raw, ",") {
		endpoint = strings.TrimSpace(endpoint)
		if len(endpoint) > 0 {
			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints
}
