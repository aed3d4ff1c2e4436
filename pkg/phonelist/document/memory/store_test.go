package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document/tests"
)

func TestDocumentMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.reset()
	}
	tests.RunTests(t, testStore, teardown)
}

func TestHooks(t *testing.T) {
	ctx := context.Background()
	s := New()

	s.SetWriteHook(ConcurrentAppend([]string{"9999999999"}, 1))

	_, err := s.Write(ctx, "list", []string{"1111111111"}, nil, "create")
	assert.True(t, errors.Is(err, document.ErrVersionConflict))

	actual, err := s.Read(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"9999999999"}, actual.Items)

	_, err = s.Write(ctx, "list", []string{"9999999999", "1111111111"}, actual.Version, "update")
	require.NoError(t, err)
	assert.Equal(t, 2, s.WriteCount("list"))
	assert.Equal(t, 1, s.ReadCount("list"))

	s.SetWriteHook(AlwaysConflict)
	actual, err = s.Read(ctx, "list")
	require.NoError(t, err)
	_, err = s.Write(ctx, "list", []string{}, actual.Version, "update")
	assert.True(t, errors.Is(err, document.ErrVersionConflict))

	s.SetReadError(errors.New("unavailable"))
	_, err = s.Read(ctx, "list")
	assert.True(t, document.IsStoreError(err))

	s.reset()
	assert.Equal(t, 0, s.WriteCount("list"))
	actual, err = s.Read(ctx, "list")
	require.NoError(t, err)
	assert.False(t, actual.Exists())
}
