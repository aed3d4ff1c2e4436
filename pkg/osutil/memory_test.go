package osutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalMemory(t *testing.T) {
	files := map[string]string{}
	readFile := func(path string) ([]byte, error) {
		contents, ok := files[path]
		if !ok {
			return nil, os.ErrNotExist
		}
		return []byte(contents), nil
	}
	locations := []string{"v2", "v1"}

	assert.EqualValues(t, 1024, totalMemory(1024, locations, readFile))

	files["v1"] = "512\n"
	assert.EqualValues(t, 512, totalMemory(1024, locations, readFile))

	files["v1"] = "9223372036854771712\n"
	assert.EqualValues(t, 1024, totalMemory(1024, locations, readFile))

	files["v2"] = "max\n"
	files["v1"] = "512\n"
	assert.EqualValues(t, 1024, totalMemory(1024, locations, readFile))

	files["v2"] = "256\n"
	assert.EqualValues(t, 256, totalMemory(1024, locations, readFile))

	files["v2"] = "4096"
	assert.EqualValues(t, 1024, totalMemory(1024, locations, readFile))

	files["v2"] = "garbage"
	files["v1"] = "128"
	assert.EqualValues(t, 128, totalMemory(1024, locations, readFile))
}

func TestGetTotalMemory(t *testing.T) {
	assert.NotZero(t, GetTotalMemory())
}
