package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Valid(t *testing.T) {
	for _, tc := range []struct {
		raw      string
		expected string
	}{
		{"1234567890", "1234567890"},
		{"  0000000000  ", "0000000000"},
		{"\t9876543210\n", "9876543210"},
	} {
		actual, err := Normalize(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.expected, actual)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, tc := range []struct {
		raw      string
		expected error
	}{
		{"", ErrMissingValue},
		{"   ", ErrMissingValue},
		{"123456789", ErrInvalidLength},
		{"12345678901", ErrInvalidLength},
		{"+1234567890", ErrInvalidLength},
		{"123-456-78", ErrInvalidFormat},
		{"12345abcde", ErrInvalidFormat},
		{"12345 6789", ErrInvalidFormat},
		{"١٢٣٤٥٦٧٨٩٠", ErrInvalidFormat}, // non-ASCII digits
	} {
		_, err := Normalize(tc.raw)
		assert.Equal(t, tc.expected, err, tc.raw)
	}
}

func TestNormalizeBatch_HappyPath(t *testing.T) {
	actual, err := NormalizeBatch([]string{" 1111111111", "2222222222 ", "1111111111"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1111111111", "2222222222", "1111111111"}, actual)
}

func TestNormalizeBatch_Empty(t *testing.T) {
	_, err := NormalizeBatch(nil)
	assert.Equal(t, ErrEmptyBatch, err)

	_, err = NormalizeBatch([]string{})
	assert.Equal(t, ErrEmptyBatch, err)
}

func TestNormalizeBatch_EnumeratesEveryInvalidEntry(t *testing.T) {
	actual, err := NormalizeBatch([]string{"1111111111", " 12 ", "abcdefghij", "2222222222", ""})
	assert.Nil(t, actual)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Invalid, 3)

	assert.Equal(t, 1, batchErr.Invalid[0].Index)
	assert.Equal(t, ErrInvalidLength, batchErr.Invalid[0].Err)
	assert.Equal(t, 2, batchErr.Invalid[1].Index)
	assert.Equal(t, ErrInvalidFormat, batchErr.Invalid[1].Err)
	assert.Equal(t, 4, batchErr.Invalid[2].Index)
	assert.Equal(t, ErrMissingValue, batchErr.Invalid[2].Err)

	assert.Equal(t, []string{" 12 ", "abcdefghij", ""}, batchErr.Values())
}
