package etcd

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/code-payments/phonelist-server/pkg/etcdtest"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document/tests"
)

const testPrefix = "/test/"

var testClient *v3.Client

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	client, teardown, err := etcdtest.StartEtcd(pool)
	if err != nil {
		log.WithError(err).Error("Error starting etcd")
		teardown()
		os.Exit(1)
	}
	testClient = client

	code := m.Run()
	teardown()
	os.Exit(code)
}

func TestDocumentEtcdStore(t *testing.T) {
	testStore := New(testClient, testPrefix)
	teardown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := testClient.Delete(ctx, testPrefix, v3.WithPrefix())
		require.NoError(t, err)
	}
	tests.RunTests(t, testStore, teardown)
}

func TestCorruptDocument(t *testing.T) {
	ctx := context.Background()
	testStore := New(testClient, testPrefix)

	_, err := testClient.Put(ctx, testPrefix+document.Path("corrupt"), `{"phones": []}`)
	require.NoError(t, err)
	defer testClient.Delete(ctx, testPrefix, v3.WithPrefix())

	_, err = testStore.Read(ctx, "corrupt")
	assert.True(t, document.IsStoreError(err))
	assert.True(t, errors.Is(err, document.ErrCorruptDocument))
}

func TestMalformedVersion(t *testing.T) {
	ctx := context.Background()
	testStore := New(testClient, testPrefix)

	for _, version := range []string{"", "abc", "-1", "0"} {
		_, err := testStore.Write(ctx, "list", []string{"1234567890"}, &version, "update")
		assert.True(t, errors.Is(err, document.ErrVersionConflict), version)
	}
}
