package etcdtest

import (
	"context"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/code-payments/phonelist-server/pkg/retry"
	"github.com/code-payments/phonelist-server/pkg/retry/backoff"
)

const (
	imageName = "quay.io/coreos/etcd"
	imageTag  = "v3.5.13"

	containerAutoKill = 120 * time.Second
	readyTimeout      = 30 * time.Second

	readinessKey = "__readiness"
)

// StartEtcd starts a single node etcd container and returns a connected client.
// The returned teardown closes the client and purges the container, and is
// always safe to call.
func StartEtcd(pool *dockertest.Pool) (client *v3.Client, teardown func(), err error) {
	teardown = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: imageName,
		Tag:        imageTag,
		Env: []string{
			"ALLOW_NONE_AUTHENTICATION=true",
			"ETCD_LISTEN_CLIENT_URLS=http://0.0.0.0:2379",
			"ETCD_ADVERTISE_CLIENT_URLS=http://0.0.0.0:2379",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, teardown, errors.Wrap(err, "failed to start etcd")
	}

	// Expire() never returns an error
	_ = resource.Expire(uint(containerAutoKill.Seconds()))

	log := logrus.StandardLogger().WithField("method", "StartEtcd")

	purge := func() {
		if err := pool.Purge(resource); err != nil {
			log.WithError(err).Error("failed to cleanup etcd resource")
		}
	}
	teardown = purge

	client, err = v3.New(v3.Config{
		Endpoints:   []string{fmt.Sprintf("localhost:%s", resource.GetPort("2379/tcp"))},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, teardown, errors.Wrap(err, "failed to create v3 client")
	}

	teardown = func() {
		_ = client.Close()
		purge()
	}

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	_, err = retry.Retry(
		ctx,
		func(ctx context.Context, _ uint) error {
			ctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			_, err := client.Get(ctx, readinessKey)
			return err
		},
		retry.Backoff(backoff.Linear(100*time.Millisecond), 500*time.Millisecond),
	)
	if err != nil {
		return nil, teardown, errors.Wrap(err, "timed out waiting for etcd container")
	}

	return client, teardown, nil
}
