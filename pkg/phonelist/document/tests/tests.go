package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
)

func RunTests(t *testing.T, s document.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s document.Store){
		testReadNotFound,
		testRoundTrip,
		testCreateConflict,
		testStaleVersionConflict,
		testEmptyDocument,
		testDocumentsAreIndependent,
		testConcurrentWriters,
	} {
		tf(t, s)
		teardown()
	}
}

func testReadNotFound(t *testing.T, s document.Store) {
	t.Run("testReadNotFound", func(t *testing.T) {
		ctx := context.Background()

		actual, err := s.Read(ctx, "missing")
		require.NoError(t, err)
		assert.Equal(t, "missing", actual.Name)
		assert.NotNil(t, actual.Items)
		assert.Empty(t, actual.Items)
		assert.Nil(t, actual.Version)
		assert.False(t, actual.Exists())
	})
}

func testRoundTrip(t *testing.T, s document.Store) {
	t.Run("testRoundTrip", func(t *testing.T) {
		ctx := context.Background()

		expected := []string{"2222222222", "1111111111"}

		version, err := s.Write(ctx, "list", expected, nil, "create list")
		require.NoError(t, err)
		assert.NotEmpty(t, version)

		actual, err := s.Read(ctx, "list")
		require.NoError(t, err)
		assert.Equal(t, expected, actual.Items)
		require.NotNil(t, actual.Version)
		assert.Equal(t, version, *actual.Version)

		expected = append(expected, "3333333333")

		updatedVersion, err := s.Write(ctx, "list", expected, actual.Version, "update list")
		require.NoError(t, err)
		assert.NotEqual(t, version, updatedVersion)

		actual, err = s.Read(ctx, "list")
		require.NoError(t, err)
		assert.Equal(t, expected, actual.Items)
		require.NotNil(t, actual.Version)
		assert.Equal(t, updatedVersion, *actual.Version)
	})
}

func testCreateConflict(t *testing.T, s document.Store) {
	t.Run("testCreateConflict", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.Write(ctx, "list", []string{"1111111111"}, nil, "create list")
		require.NoError(t, err)

		_, err = s.Write(ctx, "list", []string{"2222222222"}, nil, "create list again")
		assert.True(t, errors.Is(err, document.ErrVersionConflict))
		assert.False(t, document.IsStoreError(err))

		var conflictErr *document.ConflictError
		assert.True(t, errors.As(err, &conflictErr))

		actual, err := s.Read(ctx, "list")
		require.NoError(t, err)
		assert.Equal(t, []string{"1111111111"}, actual.Items)
	})
}

func testStaleVersionConflict(t *testing.T, s document.Store) {
	t.Run("testStaleVersionConflict", func(t *testing.T) {
		ctx := context.Background()

		staleVersion, err := s.Write(ctx, "list", []string{"1111111111"}, nil, "create list")
		require.NoError(t, err)

		_, err = s.Write(ctx, "list", []string{"1111111111", "2222222222"}, &staleVersion, "concurrent update")
		require.NoError(t, err)

		_, err = s.Write(ctx, "list", []string{"1111111111", "3333333333"}, &staleVersion, "stale update")
		assert.True(t, errors.Is(err, document.ErrVersionConflict))

		unknownVersion := "0"
		_, err = s.Write(ctx, "missing", []string{"1111111111"}, &unknownVersion, "update missing")
		assert.True(t, errors.Is(err, document.ErrVersionConflict))

		actual, err := s.Read(ctx, "list")
		require.NoError(t, err)
		assert.Equal(t, []string{"1111111111", "2222222222"}, actual.Items)

		actual, err = s.Read(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, actual.Exists())
	})
}

func testEmptyDocument(t *testing.T, s document.Store) {
	t.Run("testEmptyDocument", func(t *testing.T) {
		ctx := context.Background()

		version, err := s.Write(ctx, "empty", nil, nil, "create empty list")
		require.NoError(t, err)

		actual, err := s.Read(ctx, "empty")
		require.NoError(t, err)
		assert.NotNil(t, actual.Items)
		assert.Empty(t, actual.Items)
		require.NotNil(t, actual.Version)
		assert.Equal(t, version, *actual.Version)
	})
}

func testDocumentsAreIndependent(t *testing.T, s document.Store) {
	t.Run("testDocumentsAreIndependent", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.Write(ctx, "first", []string{"1111111111"}, nil, "create first")
		require.NoError(t, err)

		_, err = s.Write(ctx, "second", []string{"2222222222"}, nil, "create second")
		require.NoError(t, err)

		first, err := s.Read(ctx, "first")
		require.NoError(t, err)
		assert.Equal(t, []string{"1111111111"}, first.Items)

		second, err := s.Read(ctx, "second")
		require.NoError(t, err)
		assert.Equal(t, []string{"2222222222"}, second.Items)
	})
}

func testConcurrentWriters(t *testing.T, s document.Store) {
	t.Run("testConcurrentWriters", func(t *testing.T) {
		ctx := context.Background()

		version, err := s.Write(ctx, "list", []string{}, nil, "create list")
		require.NoError(t, err)

		const writers = 8

		var wg sync.WaitGroup
		results := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				_, err := s.Write(ctx, "list", []string{fmt.Sprintf("%010d", i)}, &version, "racing update")
				results <- err
			}(i)
		}
		wg.Wait()
		close(results)

		var succeeded int
		for err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, document.ErrVersionConflict), err.Error())
		}
		assert.Equal(t, 1, succeeded)

		actual, err := s.Read(ctx, "list")
		require.NoError(t, err)
		assert.Len(t, actual.Items, 1)
	})
}
