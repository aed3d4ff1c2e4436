package github

import (
	"time"

	"github.com/code-payments/phonelist-server/pkg/config"
	"github.com/code-payments/phonelist-server/pkg/config/env"
	"github.com/code-payments/phonelist-server/pkg/config/memory"
	"github.com/code-payments/phonelist-server/pkg/config/wrapper"
	githubclient "github.com/code-payments/phonelist-server/pkg/github"
)

const (
	envConfigPrefix = "GITHUB_"

	TokenConfigEnvName = envConfigPrefix + "TOKEN"
	OwnerConfigEnvName = envConfigPrefix + "OWNER"
	RepoConfigEnvName  = envConfigPrefix + "REPO"

	ApiBaseUrlConfigEnvName = envConfigPrefix + "API_BASE_URL"
	defaultApiBaseUrl       = githubclient.DefaultBaseUrl

	HttpTimeoutConfigEnvName = envConfigPrefix + "HTTP_TIMEOUT"
	defaultHttpTimeout       = 10 * time.Second

	CommitterNameConfigEnvName = envConfigPrefix + "COMMITTER_NAME"
	defaultCommitterName       = "Phone API"

	CommitterEmailConfigEnvName = envConfigPrefix + "COMMITTER_EMAIL"
	defaultCommitterEmail       = "api@phone.app"
)

type conf struct {
	token config.String
	owner config.String
	repo  config.String

	apiBaseUrl  config.String
	httpTimeout config.Duration

	committerName  config.String
	committerEmail config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			token: env.NewRequiredStringConfig(TokenConfigEnvName),
			owner: env.NewRequiredStringConfig(OwnerConfigEnvName),
			repo:  env.NewRequiredStringConfig(RepoConfigEnvName),

			apiBaseUrl:  env.NewStringConfig(ApiBaseUrlConfigEnvName, defaultApiBaseUrl),
			httpTimeout: env.NewDurationConfig(HttpTimeoutConfigEnvName, defaultHttpTimeout),

			committerName:  env.NewStringConfig(CommitterNameConfigEnvName, defaultCommitterName),
			committerEmail: env.NewStringConfig(CommitterEmailConfigEnvName, defaultCommitterEmail),
		}
	}
}

type testOverrides struct {
	settings   *memory.Source
	apiBaseUrl string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			token: wrapper.NewRequiredStringConfig(overrides.settings.Config(TokenConfigEnvName)),
			owner: wrapper.NewRequiredStringConfig(overrides.settings.Config(OwnerConfigEnvName)),
			repo:  wrapper.NewRequiredStringConfig(overrides.settings.Config(RepoConfigEnvName)),

			apiBaseUrl:  wrapper.NewStringConfig(memory.NewConfig(overrides.apiBaseUrl), defaultApiBaseUrl),
			httpTimeout: wrapper.NewDurationConfig(memory.NewConfig(time.Second), defaultHttpTimeout),

			committerName:  wrapper.NewStringConfig(memory.NewConfig(defaultCommitterName), defaultCommitterName),
			committerEmail: wrapper.NewStringConfig(memory.NewConfig(defaultCommitterEmail), defaultCommitterEmail),
		}
	}
}
