package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringHelpers(t *testing.T) {
	value := String("sha")
	assert.Equal(t, "sha", *value)

	copied := StringCopy(value)
	assert.Equal(t, "sha", *copied)
	assert.False(t, copied == value)
	assert.Nil(t, StringCopy(nil))
}
